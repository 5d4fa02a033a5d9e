package cli

import (
	"github.com/davarch/star-backup/internal/infrastructure/console"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [username] [list_name]",
	Short: "Back up starred repositories once",
	Long: `Back up every repository the user has starred, or only the members of
list_name. Both arguments default to the config file and environment
(STAR_BACKUP_USERNAME, STAR_BACKUP_LIST); with no username the token's owner
is used.

The exit code is 0 when the run completes, even if some repositories failed;
failures are listed in the summary and in backup_metadata.json.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	target := targetFrom(cfg, args)
	pass, store, err := newPass(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	log.Info("start",
		zap.String("version", version),
		zap.String("user", target.Username),
		zap.String("list", target.List),
		zap.String("root", cfg.Backup.Root),
		zap.Int("max_attempts", cfg.Backup.MaxAttempts),
	)

	report, err := pass.Execute(cmd.Context(), target)
	if !report.Timestamp.IsZero() {
		console.PrintSummary(cmd.OutOrStdout(), report, store.Path())
	}
	return err
}

func init() {
	rootCmd.AddCommand(runCmd)
}
