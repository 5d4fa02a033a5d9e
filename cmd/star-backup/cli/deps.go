package cli

import (
	"context"
	"time"

	"github.com/davarch/star-backup/internal/application"
	"github.com/davarch/star-backup/internal/domain"
	"github.com/davarch/star-backup/internal/infrastructure/config"
	"github.com/davarch/star-backup/internal/infrastructure/git_cli"
	"github.com/davarch/star-backup/internal/infrastructure/github_api"
	"github.com/davarch/star-backup/internal/infrastructure/logging"
	"github.com/davarch/star-backup/internal/infrastructure/notify_libnotify"
	"github.com/davarch/star-backup/internal/infrastructure/report_fs"
	"go.uber.org/zap"
)

// loadConfig reads --config and validates it. Nothing touches the network or
// the backup root before this succeeds.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func targetFrom(cfg config.Config, args []string) domain.Target {
	t := domain.Target{Username: cfg.GitHub.Username, List: cfg.GitHub.List}
	if len(args) > 0 && args[0] != "" {
		t.Username = args[0]
	}
	if len(args) > 1 {
		t.List = args[1]
	}
	return t
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	l, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, &domain.ConfigError{Field: "log", Err: err}
	}
	return l, nil
}

func newLister(ctx context.Context, cfg config.Config, log *zap.Logger) (*github_api.Client, error) {
	return github_api.NewClient(ctx, cfg.GitHub.Token,
		github_api.WithBaseURL(cfg.GitHub.BaseURL),
		github_api.WithTimeout(cfg.GitHub.Timeout),
		github_api.WithVerbose(verbose, log.Named("github")),
	)
}

func newGit(cfg config.Config, log *zap.Logger) *git_cli.Git {
	return git_cli.New(
		git_cli.WithLogger(log.Named("git")),
		git_cli.WithShallowDepth(cfg.Backup.ShallowDepth),
		git_cli.WithTimeout(cfg.Backup.GitTimeout),
		git_cli.WithToken(cfg.GitHub.Token),
	)
}

func newPass(ctx context.Context, cfg config.Config, log *zap.Logger) (*application.BackupPass, *report_fs.Store, error) {
	lister, err := newLister(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	uc := application.NewBackupUseCase(log, newGit(cfg, log), application.BackupOptions{
		MaxAttempts:          cfg.Backup.MaxAttempts,
		BaseDelay:            cfg.Backup.BaseDelay,
		MaxDelay:             cfg.Backup.MaxDelay,
		LargeRepoThresholdKB: cfg.Backup.LargeRepoThresholdKB,
	})

	store := report_fs.New(cfg.ReportPath())

	var note domain.Notifier
	if cfg.Notify.Enabled {
		note = notify_libnotify.NewSoft(notify_libnotify.Options{Expire: 10 * time.Second})
	}

	pass := application.NewBackupPass(log, lister, uc, store, note, application.PassConfig{
		Root:    cfg.Backup.Root,
		Exclude: cfg.Backup.Exclude,
	})
	return pass, store, nil
}
