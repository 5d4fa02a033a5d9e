package application

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/davarch/star-backup/internal/domain"
	"go.uber.org/zap"
)

type PassConfig struct {
	Root    string
	Exclude []string
}

// BackupPass is one complete run: list, filter, back up, persist, notify.
type BackupPass struct {
	log    *zap.Logger
	lister domain.StarLister
	backup *BackupUseCase
	store  domain.ReportStore
	note   domain.Notifier

	root    string
	mu      sync.RWMutex
	exclude []string
}

func NewBackupPass(l *zap.Logger, lister domain.StarLister, backup *BackupUseCase, store domain.ReportStore, note domain.Notifier, cfg PassConfig) *BackupPass {
	return &BackupPass{
		log: l, lister: lister, backup: backup, store: store, note: note,
		root: cfg.Root, exclude: cfg.Exclude,
	}
}

func (p *BackupPass) SetExclude(patterns []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exclude = patterns
}

// Execute runs a pass for t. Listing and backup-root failures abort before the
// report is touched, so the previous report survives a failed run.
func (p *BackupPass) Execute(ctx context.Context, t domain.Target) (domain.RunReport, error) {
	repos, err := p.lister.FetchStarred(ctx, t.Username, t.List)
	if err != nil {
		return domain.RunReport{}, err
	}

	p.mu.RLock()
	exclude := p.exclude
	p.mu.RUnlock()

	repos, skipped := FilterExcluded(repos, exclude)
	p.log.Info("starred repositories",
		zap.String("user", t.Username),
		zap.String("list", t.List),
		zap.Int("repos", len(repos)),
		zap.Int("excluded", skipped),
	)

	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return domain.RunReport{}, &domain.FilesystemError{Op: "mkdir", Path: p.root, Err: err}
	}

	report, err := p.backup.Run(ctx, repos, p.root)
	if err != nil {
		return domain.RunReport{}, err
	}

	if err := p.store.Write(ctx, report); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}

	if p.note != nil {
		if err := p.note.Notify(ctx, titleFor(report), bodyFor(report), ""); err != nil {
			p.log.Warn("notify failed", zap.Error(err))
		}
	}

	return report, nil
}

// FilterExcluded drops repositories whose owner/name matches one of patterns
// (path.Match syntax, case-insensitive) and reports how many were dropped.
func FilterExcluded(repos []domain.RepoDescriptor, patterns []string) ([]domain.RepoDescriptor, int) {
	if len(patterns) == 0 {
		return repos, 0
	}

	out := make([]domain.RepoDescriptor, 0, len(repos))
	for _, r := range repos {
		if matchesAny(r.Name, patterns) {
			continue
		}
		out = append(out, r)
	}
	return out, len(repos) - len(out)
}

func matchesAny(name string, patterns []string) bool {
	name = strings.ToLower(name)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func titleFor(r domain.RunReport) string {
	if r.FailureCount == 0 {
		return "✅ star-backup: done"
	}
	return "❌ star-backup: " + strconv.Itoa(r.FailureCount) + " failed"
}

func bodyFor(r domain.RunReport) string {
	return fmt.Sprintf("%d/%d repositories backed up", r.SuccessCount, r.Total)
}
