package cli

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/davarch/star-backup/internal/domain"
	"github.com/davarch/star-backup/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var excludeCmd = &cobra.Command{
	Use:   "exclude <owner/name|pattern>",
	Short: "Add a repository or pattern to the exclude list in config.yaml",
	Args:  cobra.MatchAll(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := strings.TrimSpace(args[0])
		if _, err := path.Match(pattern, ""); err != nil || pattern == "" {
			return &domain.ConfigError{Field: "backup.exclude", Err: fmt.Errorf("bad pattern %q", args[0])}
		}

		changed, err := config.EditExclude(cfgPath, func(cur []string) ([]string, bool) {
			if slices.ContainsFunc(cur, func(p string) bool { return strings.EqualFold(p, pattern) }) {
				return cur, false
			}
			return append(cur, pattern), true
		})
		if err != nil {
			return err
		}

		if !changed {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "no change (%q already excluded)\n", pattern)
			return nil
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "excluded: %s\n", pattern)
		return nil
	},
}

var includeCmd = &cobra.Command{
	Use:   "include <owner/name|pattern>",
	Short: "Remove a repository or pattern from the exclude list in config.yaml",
	Args:  cobra.MatchAll(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := strings.TrimSpace(args[0])
		changed, err := config.EditExclude(cfgPath, func(cur []string) ([]string, bool) {
			n := len(cur)
			cur = slices.DeleteFunc(cur, func(p string) bool { return strings.EqualFold(p, pattern) })
			return cur, len(cur) != n
		})
		if err != nil {
			return err
		}

		if !changed {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "no change (%q not in exclude list)\n", pattern)
			return nil
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "included: %s\n", pattern)
		return nil
	},
}

func init() {
	includeCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		out := make([]string, 0, len(cfg.Backup.Exclude))
		for _, p := range cfg.Backup.Exclude {
			if strings.HasPrefix(p, toComplete) {
				out = append(out, p)
			}
		}

		return out, cobra.ShellCompDirectiveNoFileComp
	}

	rootCmd.AddCommand(excludeCmd)
	rootCmd.AddCommand(includeCmd)
}
