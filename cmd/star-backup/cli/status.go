package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/davarch/star-backup/internal/infrastructure/config"
	"github.com/davarch/star-backup/internal/infrastructure/console"
	"github.com/davarch/star-backup/internal/infrastructure/report_fs"
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the report of the last run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		store := report_fs.New(cfg.ReportPath())
		r, err := store.Read(cmd.Context())
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no report yet at %s", store.Path())
		}
		if err != nil {
			return err
		}

		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}

		console.PrintStatus(cmd.OutOrStdout(), r, time.Now())
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw report")

	rootCmd.AddCommand(statusCmd)
}
