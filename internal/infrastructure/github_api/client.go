package github_api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/davarch/star-backup/internal/domain"
	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const perPage = 100

type Client struct {
	gh   *github.Client
	http *http.Client
	log  *zap.Logger
}

type options struct {
	baseURL string
	timeout time.Duration
	verbose bool
	log     *zap.Logger
}

type Option func(*options)

// WithBaseURL points the client at a GitHub Enterprise Server REST root
// (https://host/api/v3/) or a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithVerbose logs one line per HTTP request and response to l.
func WithVerbose(enabled bool, l *zap.Logger) Option {
	return func(o *options) {
		o.verbose = enabled
		o.log = l
	}
}

type loggingRoundTripper struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.log.Debug("github api request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.log.Debug("github api error", zap.Duration("took", dur), zap.Error(err))
		return resp, err
	}
	t.log.Debug("github api response", zap.Int("status", resp.StatusCode), zap.Duration("took", dur))
	return resp, nil
}

func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, errors.New("github client: ctx is nil")
	}

	o := &options{timeout: 30 * time.Second}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, log: o.log}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	hc := &http.Client{Transport: transport, Timeout: o.timeout}

	gh := github.NewClient(hc)
	if o.baseURL != "" {
		u, err := url.Parse(o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("github client: base url: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		gh.BaseURL = u
	}

	return &Client{gh: gh, http: hc, log: o.log}, nil
}

// FetchStarred returns the repositories username has starred, or the members
// of the named star list when listName is set. An empty username means the
// token's owner.
func (c *Client) FetchStarred(ctx context.Context, username, listName string) ([]domain.RepoDescriptor, error) {
	if username == "" {
		u, resp, err := c.gh.Users.Get(ctx, "")
		if err != nil {
			return nil, mapError("get user", resp, err)
		}
		username = u.GetLogin()
		c.log.Debug("resolved authenticated user", zap.String("user", username))
	}

	if listName == "" {
		return c.starred(ctx, username)
	}
	return c.listItems(ctx, username, listName)
}

func (c *Client) starred(ctx context.Context, username string) ([]domain.RepoDescriptor, error) {
	opt := &github.ActivityListStarredOptions{ListOptions: github.ListOptions{PerPage: perPage}}

	var out []domain.RepoDescriptor
	for {
		page, resp, err := c.gh.Activity.ListStarred(ctx, username, opt)
		if err != nil {
			return nil, mapError("list starred", resp, err)
		}
		for _, s := range page {
			r := s.GetRepository()
			if r == nil {
				continue
			}
			out = append(out, domain.RepoDescriptor{
				Name:     r.GetFullName(),
				CloneURL: r.GetCloneURL(),
				SizeKB:   int64(r.GetSize()),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func mapError(op string, resp *github.Response, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	var rle *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	switch {
	case errors.As(err, &rle), errors.As(err, &abuse):
		return &domain.APIError{Op: op, StatusCode: status, Err: fmt.Errorf("%w: %v", domain.ErrRateLimited, err)}
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &domain.APIError{Op: op, StatusCode: status, Err: fmt.Errorf("%w: %v", domain.ErrAPIAuth, err)}
	case status == http.StatusNotFound:
		return &domain.APIError{Op: op, StatusCode: status, Err: fmt.Errorf("%w: %v", domain.ErrListNotFound, err)}
	}
	return &domain.APIError{Op: op, StatusCode: status, Err: err}
}
