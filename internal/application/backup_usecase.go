package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/star-backup/internal/domain"
	"go.uber.org/zap"
)

type BackupOptions struct {
	MaxAttempts          int
	BaseDelay            time.Duration
	MaxDelay             time.Duration
	LargeRepoThresholdKB int64
}

// BackupUseCase drives one sequential pass over a repository list, cloning or
// updating each repository under a backup root.
type BackupUseCase struct {
	log  *zap.Logger
	vcs  domain.VCS
	opts BackupOptions

	now   func() time.Time
	timer backoff.Timer
}

func NewBackupUseCase(l *zap.Logger, vcs domain.VCS, opts BackupOptions) *BackupUseCase {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &BackupUseCase{log: l, vcs: vcs, opts: opts, now: time.Now}
}

// Run backs up repos in order and returns the run's report. One repository's
// failure never stops the run; the only error returned is ctx's, in which
// case there is no report, even when the cancelled repository was the last.
func (uc *BackupUseCase) Run(ctx context.Context, repos []domain.RepoDescriptor, root string) (domain.RunReport, error) {
	outcomes := make([]domain.BackupOutcome, 0, len(repos))
	for i, repo := range repos {
		if err := ctx.Err(); err != nil {
			return domain.RunReport{}, err
		}
		uc.log.Info("backup",
			zap.String("repo", repo.Name),
			zap.Int("index", i+1),
			zap.Int("total", len(repos)),
		)
		out := uc.backupOne(ctx, repo, root)
		if err := ctx.Err(); err != nil {
			return domain.RunReport{}, err
		}
		outcomes = append(outcomes, out)
	}
	return domain.NewRunReport(uc.now(), outcomes), nil
}

func (uc *BackupUseCase) backupOne(ctx context.Context, repo domain.RepoDescriptor, root string) domain.BackupOutcome {
	out := domain.BackupOutcome{Name: repo.Name}

	dir, err := SanitizeName(repo.Name)
	if err != nil {
		return uc.failed(out, err)
	}
	dest := filepath.Join(root, dir)

	large := uc.isLarge(repo)
	action, err := chooseAction(dest, large)
	if err != nil {
		return uc.failed(out, err)
	}
	out.Action = action

	op := func(attempt int) error {
		uc.log.Debug("attempt",
			zap.String("repo", repo.Name),
			zap.String("action", string(action)),
			zap.Int("attempt", attempt),
			zap.String("dest", dest),
		)
		if action == domain.ActionUpdate {
			if large {
				if err := uc.vcs.ConfigureForLargeRepo(ctx, dest); err != nil {
					return err
				}
			}
			return uc.vcs.Update(ctx, dest)
		}
		return uc.vcs.Clone(ctx, repo.CloneURL, dest, action == domain.ActionShallowClone)
	}
	onRetry := func(attempt int, err error, wait time.Duration) {
		uc.log.Warn("attempt failed, retrying",
			zap.String("repo", repo.Name),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	policy := retryPolicy{
		maxAttempts: uc.opts.MaxAttempts,
		baseDelay:   uc.opts.BaseDelay,
		maxDelay:    uc.opts.MaxDelay,
		timer:       uc.timer,
	}
	attempts, err := policy.run(ctx, op, onRetry)
	out.Attempts = attempts
	if err != nil {
		return uc.failed(out, err)
	}

	out.Status = domain.StatusSuccess
	uc.log.Info("backup ok",
		zap.String("repo", repo.Name),
		zap.String("action", string(action)),
		zap.Int("attempts", attempts),
	)
	return out
}

func (uc *BackupUseCase) failed(out domain.BackupOutcome, err error) domain.BackupOutcome {
	out.Status = domain.StatusFailed
	out.Error = err.Error()
	uc.log.Error("backup failed",
		zap.String("repo", out.Name),
		zap.String("action", string(out.Action)),
		zap.Int("attempts", out.Attempts),
		zap.Error(err),
	)
	return out
}

func (uc *BackupUseCase) isLarge(repo domain.RepoDescriptor) bool {
	return uc.opts.LargeRepoThresholdKB > 0 && repo.SizeKB > uc.opts.LargeRepoThresholdKB
}

// chooseAction decides between clone and update from what is on disk.
// A half-finished clone from an interrupted run is a directory too and gets
// updated.
func chooseAction(dest string, large bool) (domain.BackupAction, error) {
	fi, err := os.Stat(dest)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if large {
			return domain.ActionShallowClone, nil
		}
		return domain.ActionClone, nil
	case err != nil:
		return "", &domain.FilesystemError{Op: "stat", Path: dest, Err: err}
	case !fi.IsDir():
		return "", &domain.FilesystemError{Op: "stat", Path: dest, Err: domain.ErrPathConflict}
	}
	return domain.ActionUpdate, nil
}

// SanitizeName maps a repository name such as owner/name to a single safe
// directory name. Characters outside [A-Za-z0-9._-] become '_' and leading dots
// are dropped.
func SanitizeName(name string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	s := strings.TrimLeft(b.String(), ".")
	if strings.Trim(s, "_") == "" || s == domain.ReportFileName {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}
	return s, nil
}
