package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/davarch/star-backup/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GitHub struct {
		Token    string        `yaml:"token,omitempty"`
		BaseURL  string        `yaml:"base_url,omitempty"`
		Username string        `yaml:"username"`
		List     string        `yaml:"list"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"github"`

	Backup struct {
		Root                 string        `yaml:"root"`
		MaxAttempts          int           `yaml:"max_attempts"`
		BaseDelay            time.Duration `yaml:"base_delay"`
		MaxDelay             time.Duration `yaml:"max_delay"`
		LargeRepoThresholdKB int64         `yaml:"large_repo_threshold_kb"`
		ShallowDepth         int           `yaml:"shallow_depth"`
		GitTimeout           time.Duration `yaml:"git_timeout"`
		Exclude              []string      `yaml:"exclude,omitempty"`
	} `yaml:"backup"`

	Report struct {
		Path string `yaml:"path,omitempty"`
	} `yaml:"report"`

	Notify struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"notify"`

	Watch struct {
		Interval  time.Duration `yaml:"interval"`
		PauseFile string        `yaml:"pause_file"`
	} `yaml:"watch"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

const (
	defaultTimeout      = 30 * time.Second
	defaultRoot         = "backups"
	defaultMaxAttempts  = 3
	defaultBaseDelay    = 2 * time.Second
	defaultThresholdKB  = 512 * 1024
	defaultShallowDepth = 50
	defaultGitTimeout   = time.Hour
	defaultInterval     = 24 * time.Hour
)

func defaults() Config {
	var c Config
	c.GitHub.Timeout = defaultTimeout
	c.Backup.Root = defaultRoot
	c.Backup.MaxAttempts = defaultMaxAttempts
	c.Backup.BaseDelay = defaultBaseDelay
	c.Backup.LargeRepoThresholdKB = defaultThresholdKB
	c.Backup.ShallowDepth = defaultShallowDepth
	c.Backup.GitTimeout = defaultGitTimeout
	c.Watch.Interval = defaultInterval
	c.Watch.PauseFile = "~/.cache/star-backup_paused"
	c.Log.Level = "info"
	c.Log.Format = "console"
	return c
}

// Load reads the YAML file at path (a missing file is not an error), then
// applies environment overrides and defaults. It does not check credentials;
// see Validate.
func Load(path string) (Config, error) {
	c := defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, &domain.ConfigError{Field: path, Err: err}
			}
		case !errors.Is(err, os.ErrNotExist):
			return c, &domain.ConfigError{Field: path, Err: err}
		}
	}

	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}

	if v := os.Getenv("GITHUB_API_URL"); v != "" {
		c.GitHub.BaseURL = v
	}

	if v := os.Getenv("STAR_BACKUP_USERNAME"); v != "" {
		c.GitHub.Username = v
	}

	if v := os.Getenv("STAR_BACKUP_LIST"); v != "" {
		c.GitHub.List = v
	}

	if v := os.Getenv("STAR_BACKUP_ROOT"); v != "" {
		c.Backup.Root = v
	}

	if v := os.Getenv("STAR_BACKUP_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backup.MaxAttempts = n
		}
	}

	if v := os.Getenv("STAR_BACKUP_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Backup.BaseDelay = d
		}
	}

	if v := os.Getenv("STAR_BACKUP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	c.GitHub.Token = strings.TrimSpace(c.GitHub.Token)
	c.Backup.Root = expandHome(c.Backup.Root)
	c.Watch.PauseFile = expandHome(c.Watch.PauseFile)
	c.Report.Path = expandHome(c.Report.Path)

	if c.Backup.Root == "" {
		c.Backup.Root = defaultRoot
	}

	if c.GitHub.Timeout <= 0 {
		c.GitHub.Timeout = defaultTimeout
	}

	if c.Backup.MaxAttempts <= 0 {
		c.Backup.MaxAttempts = defaultMaxAttempts
	}

	if c.Backup.BaseDelay < 0 {
		c.Backup.BaseDelay = defaultBaseDelay
	}

	if c.Backup.ShallowDepth <= 0 {
		c.Backup.ShallowDepth = defaultShallowDepth
	}

	if c.Watch.Interval <= 0 {
		c.Watch.Interval = defaultInterval
	}

	return c, nil
}

// Validate reports the first problem that must stop a backup before it does
// any network or filesystem work.
func (c Config) Validate() error {
	if c.GitHub.Token == "" {
		return &domain.ConfigError{Field: "github.token", Err: domain.ErrMissingToken}
	}
	for _, p := range c.Backup.Exclude {
		if _, err := path.Match(p, ""); err != nil {
			return &domain.ConfigError{Field: "backup.exclude", Err: fmt.Errorf("%q: %w", p, err)}
		}
	}
	return nil
}

// ReportPath is where the run snapshot lives; by default inside the backup root.
func (c Config) ReportPath() string {
	if c.Report.Path != "" {
		return c.Report.Path
	}
	return filepath.Join(c.Backup.Root, domain.ReportFileName)
}

// EditExclude rewrites backup.exclude in the YAML file at path and leaves
// every other key as written; environment overrides and defaults are never
// persisted. edit returns the new list and whether it changed anything.
func EditExclude(path string, edit func(cur []string) ([]string, bool)) (bool, error) {
	if path == "" {
		return false, errors.New("empty config path")
	}

	unlock, err := lock(path)
	if err != nil {
		return false, err
	}
	defer unlock()

	b, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, &domain.ConfigError{Field: path, Err: err}
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(b)) > 0 {
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return false, &domain.ConfigError{Field: path, Err: err}
		}
	}
	if len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return false, &domain.ConfigError{Field: path, Err: errors.New("top level is not a mapping")}
	}
	seq := mapValue(mapValue(root, "backup", yaml.MappingNode), "exclude", yaml.SequenceNode)

	var cur []string
	if err := seq.Decode(&cur); err != nil {
		return false, &domain.ConfigError{Field: "backup.exclude", Err: err}
	}

	next, changed := edit(cur)
	if !changed {
		return false, nil
	}

	seq.Content = nil
	for _, p := range next {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p})
	}

	var out bytes.Buffer
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return false, err
	}
	if err := enc.Close(); err != nil {
		return false, err
	}
	return true, writeAtomic(path, out.Bytes())
}

// mapValue returns the value under key in mapping m, creating it, or
// resetting a value of another kind such as an empty "backup:", as needed.
func mapValue(m *yaml.Node, key string, kind yaml.Kind) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != key {
			continue
		}
		v := m.Content[i+1]
		if v.Kind != kind {
			*v = yaml.Node{Kind: kind}
		}
		return v
	}

	v := &yaml.Node{Kind: kind}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, v)
	return v
}

func lock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	lf, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	if runtime.GOOS != "windows" {
		if err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX); err != nil {
			_ = lf.Close()
			return nil, err
		}
	}

	return func() {
		if runtime.GOOS != "windows" {
			_ = syscall.Flock(int(lf.Fd()), syscall.LOCK_UN)
		}
		_ = lf.Close()
	}, nil
}

func writeAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	if _, err := f.Write(b); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if h, _ := os.UserHomeDir(); h != "" {
			return h + p[1:]
		}
	}
	return p
}
