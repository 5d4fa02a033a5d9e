package application

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/davarch/star-backup/internal/domain"
	"go.uber.org/zap"
)

type Scheduler struct {
	log       *zap.Logger
	pass      *BackupPass
	every     time.Duration
	pauseFile string

	mu     sync.RWMutex
	target domain.Target
}

func NewScheduler(l *zap.Logger, p *BackupPass, t domain.Target, every time.Duration, pauseFile string) *Scheduler {
	return &Scheduler{
		log: l, pass: p, target: t, every: every, pauseFile: pauseFile,
	}
}

func (s *Scheduler) Update(t domain.Target, exclude []string) {
	s.mu.Lock()
	s.target = t
	s.mu.Unlock()
	s.pass.SetExclude(exclude)
	s.log.Info("config reloaded",
		zap.String("user", t.Username),
		zap.String("list", t.List),
		zap.Int("exclude", len(exclude)),
	)
}

// Run executes a pass right away and then every interval until ctx is done.
// Passes run on the calling goroutine and never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.every)
	defer t.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.isPaused() {
		s.log.Debug("paused: skipping pass")
		return
	}

	s.mu.RLock()
	target := s.target
	s.mu.RUnlock()

	report, err := s.pass.Execute(ctx, target)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Warn("pass failed", zap.Error(err))
		return
	}
	s.log.Info("pass finished",
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.SuccessCount),
		zap.Int("failed", report.FailureCount),
	)
}

func (s *Scheduler) isPaused() bool {
	if s.pauseFile == "" {
		return false
	}
	_, err := os.Stat(s.pauseFile)
	return err == nil
}
