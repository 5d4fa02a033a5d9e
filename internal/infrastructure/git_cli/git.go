package git_cli

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/davarch/star-backup/internal/domain"
	"go.uber.org/zap"
)

// LargeRepoSettings are applied to mirrors of repositories above the size
// threshold, in order.
var LargeRepoSettings = [][2]string{
	{"core.compression", "0"},
	{"http.postBuffer", "524288000"},
	{"core.packedGitLimit", "512m"},
	{"core.packedGitWindowSize", "512m"},
	{"pack.windowMemory", "512m"},
}

const maxStderr = 2048

type Git struct {
	run      Runner
	log      *zap.Logger
	binary   string
	depth    int
	timeout  time.Duration
	token    string
	authHost string
}

type Option func(*Git)

func WithRunner(r Runner) Option { return func(g *Git) { g.run = r } }
func WithLogger(l *zap.Logger) Option { return func(g *Git) { g.log = l } }
func WithShallowDepth(n int) Option { return func(g *Git) { g.depth = n } }
func WithTimeout(d time.Duration) Option { return func(g *Git) { g.timeout = d } }
func WithBinary(path string) Option { return func(g *Git) { g.binary = path } }
func WithAuthHost(prefix string) Option { return func(g *Git) { g.authHost = prefix } }
func WithToken(token string) Option { return func(g *Git) { g.token = token } }

func New(opts ...Option) *Git {
	g := &Git{
		run:      OSRunner{},
		log:      zap.NewNop(),
		binary:   "git",
		depth:    50,
		authHost: "https://github.com/",
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Git) Clone(ctx context.Context, url, dest string, shallow bool) error {
	_, statErr := os.Stat(dest)
	created := errors.Is(statErr, os.ErrNotExist)

	args := []string{"clone", "--mirror"}
	if shallow {
		args = append(args, "--depth", strconv.Itoa(g.depth))
		for _, kv := range LargeRepoSettings {
			args = append(args, "--config", kv[0]+"="+kv[1])
		}
	}
	args = append(args, url, dest)

	err := g.exec(ctx, "clone", dest, "", args)
	if err != nil && created {
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			g.log.Warn("remove partial clone", zap.String("dest", dest), zap.Error(rmErr))
		}
	}
	return err
}

func (g *Git) Update(ctx context.Context, dest string) error {
	return g.exec(ctx, "update", dest, dest, []string{"remote", "update", "--prune"})
}

func (g *Git) ConfigureForLargeRepo(ctx context.Context, dest string) error {
	for _, kv := range LargeRepoSettings {
		if err := g.exec(ctx, "config", dest, dest, []string{"config", kv[0], kv[1]}); err != nil {
			return err
		}
	}
	return nil
}

func (g *Git) exec(ctx context.Context, op, path, dir string, args []string) error {
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}

	runCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := g.run.Run(runCtx, Command{Name: g.binary, Args: args, Env: g.env()})
	g.log.Debug("git",
		zap.String("op", op),
		zap.Strings("args", args),
		zap.Int("exit", res.ExitCode),
		zap.Duration("took", time.Since(start).Truncate(time.Millisecond)),
	)

	stderr := tail(strings.TrimSpace(res.Stderr), maxStderr)
	switch {
	case err != nil && ctx.Err() != nil:
		return &domain.VCSError{Op: op, Path: path, Stderr: stderr, Err: ctx.Err()}
	case err != nil:
		return &domain.VCSError{Op: op, Path: path, Stderr: stderr, Err: err}
	case res.ExitCode != 0:
		vcsErr := &domain.VCSError{Op: op, Path: path, ExitCode: res.ExitCode, Stderr: stderr, Err: classify(stderr)}
		if errors.Is(vcsErr.Err, domain.ErrPathConflict) {
			vcsErr.Hint = "not retried; remove " + path + " by hand and the next run will clone it again"
		}
		return vcsErr
	}
	return nil
}

func (g *Git) env() []string {
	env := []string{"GIT_TERMINAL_PROMPT=0"}
	if g.token == "" {
		return env
	}
	cred := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + g.token))
	return append(env,
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=http."+g.authHost+".extraheader",
		"GIT_CONFIG_VALUE_0=AUTHORIZATION: basic "+cred,
	)
}

var (
	authMarkers = []string{
		"authentication failed",
		"could not read username",
		"could not read password",
		"terminal prompts disabled",
		"permission denied (publickey)",
		"repository not found",
		"the requested url returned error: 401",
		"the requested url returned error: 403",
	}
	conflictMarkers = []string{
		"already exists and is not an empty directory",
		"not a git repository",
	}
	networkMarkers = []string{
		"could not resolve host",
		"failed to connect",
		"connection refused",
		"connection timed out",
		"connection reset",
		"network is unreachable",
		"operation timed out",
		"early eof",
		"rpc failed",
		"the remote end hung up unexpectedly",
		"unable to access",
		"tls handshake",
		"gnutls_handshake",
		"ssl_connect",
	}
)

// classify maps git's stderr to a failure kind. Auth markers are checked first
// since git reports HTTP 401/403 as "unable to access".
func classify(stderr string) error {
	s := strings.ToLower(stderr)
	switch {
	case containsAny(s, authMarkers):
		return domain.ErrAuthRejected
	case containsAny(s, conflictMarkers):
		return domain.ErrPathConflict
	case containsAny(s, networkMarkers):
		return domain.ErrNetworkUnreachable
	}
	return domain.ErrCommandFailed
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// tail keeps at most the last n bytes of s, starting on a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return "..." + s[i:]
}
