package report_fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/davarch/star-backup/internal/domain"
)

type Store struct {
	path string
}

func New(path string) *Store { return &Store{path: path} }

func (s *Store) Path() string { return s.path }

// Write replaces the report file with r. Readers see either the previous
// report or the new one, never a partial file.
func (s *Store) Write(_ context.Context, r domain.RunReport) error {
	if s.path == "" {
		return errors.New("report path is empty")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}

	f, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return &domain.FilesystemError{Op: "create", Path: dir, Err: err}
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return &domain.FilesystemError{Op: "encode", Path: tmp, Err: err}
	}

	if err := f.Sync(); err != nil {
		return &domain.FilesystemError{Op: "sync", Path: tmp, Err: err}
	}

	if err := f.Close(); err != nil {
		return &domain.FilesystemError{Op: "close", Path: tmp, Err: err}
	}

	if err := os.Chmod(tmp, 0o644); err != nil {
		return &domain.FilesystemError{Op: "chmod", Path: tmp, Err: err}
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return &domain.FilesystemError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}

// Read loads the last written report. A missing file yields an error
// matching os.ErrNotExist.
func (s *Store) Read(_ context.Context) (domain.RunReport, error) {
	var r domain.RunReport

	b, err := os.ReadFile(s.path)
	if err != nil {
		return r, &domain.FilesystemError{Op: "read", Path: s.path, Err: err}
	}

	if err := json.Unmarshal(b, &r); err != nil {
		return r, &domain.FilesystemError{Op: "decode", Path: s.path, Err: err}
	}
	return r, nil
}
