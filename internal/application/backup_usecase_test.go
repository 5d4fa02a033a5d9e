package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davarch/star-backup/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type instantTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func newInstantTimer() *instantTimer { return &instantTimer{c: make(chan time.Time, 1)} }

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Time{}
}

func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newTestUseCase(vcs domain.VCS, opts BackupOptions) (*BackupUseCase, *instantTimer) {
	uc := NewBackupUseCase(zap.NewNop(), vcs, opts)
	tm := newInstantTimer()
	uc.timer = tm
	uc.now = func() time.Time { return fixedNow }
	return uc, tm
}

func defaultOpts() BackupOptions {
	return BackupOptions{MaxAttempts: 3, BaseDelay: time.Second, LargeRepoThresholdKB: 1000}
}

func repo(name string, size int64) domain.RepoDescriptor {
	return domain.RepoDescriptor{Name: name, CloneURL: "https://github.com/" + name + ".git", SizeKB: size}
}

func TestRun_TotalsMatchInput(t *testing.T) {
	root := t.TempDir()
	vcs := &domain.MockVCS{Script: map[string][]error{
		filepath.Join(root, "acme_broken"): {errors.New("x"), errors.New("x"), errors.New("x")},
	}}
	uc, _ := newTestUseCase(vcs, defaultOpts())

	repos := []domain.RepoDescriptor{repo("acme/one", 10), repo("acme/broken", 10), repo("acme/two", 10)}
	r, err := uc.Run(context.Background(), repos, root)
	require.NoError(t, err)

	require.Equal(t, len(repos), r.Total)
	require.Equal(t, r.Total, r.SuccessCount+r.FailureCount)
	require.Equal(t, []string{"acme/one", "acme/two"}, r.Succeeded)
	require.Len(t, r.Failed, 1)
	require.Equal(t, "acme/broken", r.Failed[0].Name)
	require.Equal(t, fixedNow, r.Timestamp)
}

func TestRun_FailsOnEveryAttempt(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "acme_flaky")
	vcs := &domain.MockVCS{Script: map[string][]error{
		dest: {errors.New("first"), errors.New("second"), errors.New("last")},
	}}
	uc, tm := newTestUseCase(vcs, defaultOpts())

	r, err := uc.Run(context.Background(), []domain.RepoDescriptor{repo("acme/flaky", 10)}, root)
	require.NoError(t, err)

	require.Empty(t, r.Succeeded)
	require.Len(t, r.Failed, 1)
	require.Equal(t, "last", r.Failed[0].Error)
	require.Equal(t, 3, r.Failed[0].Attempts)
	require.Equal(t, []string{"clone", "clone", "clone"}, vcs.CallsFor(dest))
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, tm.waits)
}

func TestRun_SucceedsOnRetry(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "acme_flaky")
	vcs := &domain.MockVCS{Script: map[string][]error{
		dest: {errors.New("reset by peer")},
	}}
	uc, tm := newTestUseCase(vcs, defaultOpts())

	r, err := uc.Run(context.Background(), []domain.RepoDescriptor{repo("acme/flaky", 10)}, root)
	require.NoError(t, err)

	require.Equal(t, []string{"acme/flaky"}, r.Succeeded)
	require.Empty(t, r.Failed)
	require.Equal(t, []string{"clone", "clone"}, vcs.CallsFor(dest))
	require.Len(t, tm.waits, 1)
}

func TestRun_ExistingCloneIsUpdated(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "acme_app")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	vcs := &domain.MockVCS{}
	uc, _ := newTestUseCase(vcs, defaultOpts())

	for i := 0; i < 2; i++ {
		r, err := uc.Run(context.Background(), []domain.RepoDescriptor{repo("acme/app", 10)}, root)
		require.NoError(t, err)
		require.Equal(t, 1, r.SuccessCount)
	}
	require.Equal(t, []string{"update", "update"}, vcs.CallsFor(dest))
}

func TestRun_LargeRepoUsesShallowClone(t *testing.T) {
	root := t.TempDir()
	vcs := &domain.MockVCS{}
	uc, _ := newTestUseCase(vcs, defaultOpts())

	repos := []domain.RepoDescriptor{repo("acme/huge", 5000), repo("acme/small", 999), repo("acme/edge", 1000)}
	_, err := uc.Run(context.Background(), repos, root)
	require.NoError(t, err)

	require.Len(t, vcs.Calls, 3)
	require.True(t, vcs.Calls[0].Shallow)
	require.False(t, vcs.Calls[1].Shallow)
	require.False(t, vcs.Calls[2].Shallow)
	for _, c := range vcs.Calls {
		require.Equal(t, "clone", c.Op)
	}
}

func TestRun_LargeExistingRepoConfiguredBeforeUpdate(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "acme_huge")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	vcs := &domain.MockVCS{}
	uc, _ := newTestUseCase(vcs, defaultOpts())

	_, err := uc.Run(context.Background(), []domain.RepoDescriptor{repo("acme/huge", 5000)}, root)
	require.NoError(t, err)
	require.Equal(t, []string{"configure", "update"}, vcs.CallsFor(dest))
}

func TestRun_ConfigureFailureCountsAsAttempt(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "acme_huge")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	vcs := &domain.MockVCS{ConfigureErr: errors.New("locked config")}
	uc, _ := newTestUseCase(vcs, defaultOpts())

	r, err := uc.Run(context.Background(), []domain.RepoDescriptor{repo("acme/huge", 5000)}, root)
	require.NoError(t, err)
	require.Len(t, r.Failed, 1)
	require.Equal(t, 3, r.Failed[0].Attempts)
	require.Equal(t, []string{"configure", "configure", "configure"}, vcs.CallsFor(dest))
}

func TestRun_EmptyList(t *testing.T) {
	uc, _ := newTestUseCase(&domain.MockVCS{}, defaultOpts())

	r, err := uc.Run(context.Background(), nil, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 0, r.Total)
	require.NotNil(t, r.Succeeded)
	require.NotNil(t, r.Failed)
	require.Empty(t, r.Succeeded)
	require.Empty(t, r.Failed)
}

func TestRun_PathConflictIsNotRetried(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "acme_file"), []byte("x"), 0o644))

	vcs := &domain.MockVCS{}
	uc, tm := newTestUseCase(vcs, defaultOpts())

	r, err := uc.Run(context.Background(), []domain.RepoDescriptor{repo("acme/file", 1), repo("acme/ok", 1)}, root)
	require.NoError(t, err)

	require.Equal(t, []string{"acme/ok"}, r.Succeeded)
	require.Len(t, r.Failed, 1)
	require.Contains(t, r.Failed[0].Error, domain.ErrPathConflict.Error())
	require.Equal(t, 0, r.Failed[0].Attempts)
	require.Empty(t, tm.waits)
}

func TestRun_VCSPathConflictStopsRetries(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "acme_app")
	vcs := &domain.MockVCS{Script: map[string][]error{
		dest: {&domain.VCSError{Op: "clone", Path: dest, ExitCode: 128, Stderr: "already exists", Err: domain.ErrPathConflict}},
	}}
	uc, _ := newTestUseCase(vcs, defaultOpts())

	r, err := uc.Run(context.Background(), []domain.RepoDescriptor{repo("acme/app", 1)}, root)
	require.NoError(t, err)
	require.Len(t, r.Failed, 1)
	require.Equal(t, 1, r.Failed[0].Attempts)
}

func TestRun_InvalidNameRecordedAsFailure(t *testing.T) {
	vcs := &domain.MockVCS{}
	uc, _ := newTestUseCase(vcs, defaultOpts())

	r, err := uc.Run(context.Background(), []domain.RepoDescriptor{repo("..", 1)}, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 1, r.Total)
	require.Equal(t, 1, r.FailureCount)
	require.Empty(t, vcs.Calls)
}

func TestRun_CanceledContextStopsBeforeNextRepo(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vcs := &domain.MockVCS{}
	uc, _ := newTestUseCase(vcs, defaultOpts())

	_, err := uc.Run(ctx, []domain.RepoDescriptor{repo("acme/app", 1)}, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, vcs.Calls)
}

func TestRun_CanceledDuringLastRepoProducesNoReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	dest := filepath.Join(root, "acme_last")
	vcs := &domain.MockVCS{Script: map[string][]error{dest: {context.Canceled}}}
	vcs.OnCall = func(c domain.VCSCall) {
		if c.Dest == dest {
			cancel()
		}
	}
	uc, _ := newTestUseCase(vcs, defaultOpts())

	r, err := uc.Run(ctx, []domain.RepoDescriptor{repo("acme/first", 1), repo("acme/last", 1)}, root)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, r.Total)
	require.Equal(t, []string{"clone"}, vcs.CallsFor(dest))
}

func TestRun_SingleAttemptNeverWaits(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "acme_app")
	vcs := &domain.MockVCS{Script: map[string][]error{dest: {errors.New("boom")}}}
	uc, tm := newTestUseCase(vcs, BackupOptions{MaxAttempts: 1, BaseDelay: time.Second})

	r, err := uc.Run(context.Background(), []domain.RepoDescriptor{repo("acme/app", 1)}, root)
	require.NoError(t, err)
	require.Equal(t, 1, r.Failed[0].Attempts)
	require.Empty(t, tm.waits)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "octocat/hello-world", want: "octocat_hello-world"},
		{in: "acme/go.mod", want: "acme_go.mod"},
		{in: "  acme/x  ", want: "acme_x"},
		{in: "../etc/passwd", want: "_etc_passwd"},
		{in: "acme/naïve", want: "acme_na_ve"},
		{in: "", wantErr: true},
		{in: "..", wantErr: true},
		{in: "/", wantErr: true},
		{in: "backup/metadata.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SanitizeName(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidName)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
