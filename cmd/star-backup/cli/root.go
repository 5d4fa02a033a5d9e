package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/davarch/star-backup/internal/domain"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	verbose bool
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "star-backup [username] [list_name]",
	Short: "Mirror your GitHub starred repositories locally",
	Long: `star-backup fetches the repositories a GitHub user has starred (or the
members of one of their star lists) and keeps a bare mirror of each one under
the backup root. Every run overwrites <root>/backup_metadata.json.

A username that matches a subcommand (run, list, status, watch, exclude,
include, version, completion) is taken as that subcommand; write
"star-backup run <username> [list_name]" instead, which always treats its
arguments as the target.

GITHUB_TOKEN must be set.`,
	Args:          cobra.MaximumNArgs(2),
	RunE:          runBackup,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(ExitCodeOf(err))
	}
}

// ExitCodeOf maps an error to the process exit code: 2 for configuration
// problems, 3 for GitHub API failures, 1 otherwise.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ce *domain.ConfigError
	if errors.As(err, &ce) {
		return 2
	}
	var ae *domain.APIError
	if errors.As(err, &ae) {
		return 3
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and HTTP request logs")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	comp := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	rootCmd.AddCommand(comp)
}
