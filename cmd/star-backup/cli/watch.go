package cli

import (
	"context"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/davarch/star-backup/internal/application"
	"github.com/davarch/star-backup/internal/infrastructure/config"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const reloadDebounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [username] [list_name]",
	Short: "Run backups periodically, reloading config.yaml on change",
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

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		pass, store, err := newPass(ctx, cfg, log)
		if err != nil {
			return err
		}

		sched := application.NewScheduler(log, pass, targetFrom(cfg, args), cfg.Watch.Interval, cfg.Watch.PauseFile)
		watchAndReload(ctx, cfgPath, args, log, sched)

		log.Info("start",
			zap.String("version", version),
			zap.Duration("every", cfg.Watch.Interval),
			zap.String("root", cfg.Backup.Root),
			zap.String("report", store.Path()),
			zap.String("pause_file", cfg.Watch.PauseFile),
		)
		sched.Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchAndReload applies config.yaml edits to sched. Usernames and lists given
// on the command line win over the file.
func watchAndReload(ctx context.Context, cfgPath string, args []string, log *zap.Logger, sched *application.Scheduler) {
	if cfgPath == "" {
		return
	}

	dir := filepath.Dir(cfgPath)
	base := filepath.Base(cfgPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify init failed", zap.Error(err))
		return
	}

	if err := w.Add(dir); err != nil {
		log.Warn("fsnotify add dir failed", zap.String("dir", dir), zap.Error(err))
		_ = w.Close()
		return
	}

	fire := func() {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Warn("config reload failed", zap.Error(err))
			return
		}
		if err := cfg.Validate(); err != nil {
			log.Warn("config reload rejected", zap.Error(err))
			return
		}
		sched.Update(targetFrom(cfg, args), cfg.Backup.Exclude)
	}

	go func() {
		defer func() { _ = w.Close() }()

		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		}()

		debounce := func() {
			mu.Lock()
			defer mu.Unlock()
			if timer == nil {
				timer = time.AfterFunc(reloadDebounce, fire)
				return
			}
			timer.Reset(reloadDebounce)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}

				if filepath.Base(ev.Name) != base {
					continue
				}

				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("fsnotify error", zap.Error(err))
			}
		}
	}()
}
