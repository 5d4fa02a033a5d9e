package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingToken = errors.New("GITHUB_TOKEN is required")

	ErrAPIAuth      = errors.New("github authentication rejected")
	ErrListNotFound = errors.New("starred list not found")
	ErrRateLimited  = errors.New("github rate limit exhausted")

	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrAuthRejected       = errors.New("authentication rejected")
	ErrPathConflict       = errors.New("destination path conflict")
	ErrCommandFailed      = errors.New("command failed")

	ErrInvalidName = errors.New("invalid repository name")
)

// ConfigError is fatal and is raised before any network or filesystem work.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// APIError reports a failed list fetch. It aborts the run.
type APIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("github %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("github %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// VCSError reports a failed git invocation. Err is one of the ErrNetworkUnreachable,
// ErrAuthRejected, ErrPathConflict or ErrCommandFailed sentinels, or the underlying
// execution error when git could not be started.
// Hint, when set, tells the user what to do about it.
type VCSError struct {
	Op       string
	Path     string
	ExitCode int
	Stderr   string
	Hint     string
	Err      error
}

func (e *VCSError) Error() string {
	msg := fmt.Sprintf("git %s %s", e.Op, e.Path)
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s: exit status %d", msg, e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *VCSError) Unwrap() error { return e.Err }

type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
