package cli

import (
	"encoding/json"

	"github.com/davarch/star-backup/internal/application"
	"github.com/davarch/star-backup/internal/infrastructure/console"
	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list [username] [list_name]",
	Short: "List the repositories a run would back up",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		lister, err := newLister(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}

		t := targetFrom(cfg, args)
		repos, err := lister.FetchStarred(cmd.Context(), t.Username, t.List)
		if err != nil {
			return err
		}
		repos, _ = application.FilterExcluded(repos, cfg.Backup.Exclude)

		if listJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(repos)
		}

		console.PrintRepos(cmd.OutOrStdout(), repos, cfg.Backup.LargeRepoThresholdKB)
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")

	rootCmd.AddCommand(listCmd)
}
