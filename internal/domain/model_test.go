package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewRunReport_KeepsOrderAndCounts(t *testing.T) {
	ts := time.Date(2026, 10, 18, 11, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	outcomes := []BackupOutcome{
		{Name: "a/one", Status: StatusSuccess},
		{Name: "a/two", Status: StatusFailed, Error: "boom", Attempts: 3},
		{Name: "a/three", Status: StatusSuccess},
	}

	r := NewRunReport(ts, outcomes)

	if r.Total != 3 || r.SuccessCount != 2 || r.FailureCount != 1 {
		t.Fatalf("unexpected counts: %+v", r)
	}
	if r.Succeeded[0] != "a/one" || r.Succeeded[1] != "a/three" {
		t.Errorf("succeeded order: %v", r.Succeeded)
	}
	if r.Failed[0] != (FailedRepo{Name: "a/two", Error: "boom", Attempts: 3}) {
		t.Errorf("failed entry: %+v", r.Failed[0])
	}
	if r.Timestamp.Location() != time.UTC || !r.Timestamp.Equal(ts) {
		t.Errorf("timestamp not normalized to UTC: %v", r.Timestamp)
	}
}

func TestNewRunReport_EmptyEncodesEmptyArrays(t *testing.T) {
	r := NewRunReport(time.Unix(0, 0), nil)

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, `"succeeded":[]`) || !strings.Contains(s, `"failed":[]`) {
		t.Errorf("expected empty arrays, got %s", s)
	}
	if !strings.Contains(s, `"total":0`) {
		t.Errorf("expected total 0, got %s", s)
	}
}

func TestErrors_UnwrapToSentinels(t *testing.T) {
	var err error = &VCSError{Op: "fetch", Path: "/b/x", ExitCode: 128, Stderr: "fatal: could not read", Err: ErrAuthRejected}
	if !errors.Is(err, ErrAuthRejected) {
		t.Errorf("VCSError should unwrap to its kind")
	}
	if got := err.Error(); got != "git fetch /b/x: exit status 128: fatal: could not read" {
		t.Errorf("unexpected message %q", got)
	}

	err = &VCSError{Op: "update", Path: "/b/x", ExitCode: 128, Stderr: "fatal: not a git repository", Hint: "remove /b/x", Err: ErrPathConflict}
	if got := err.Error(); got != "git update /b/x: exit status 128: fatal: not a git repository (remove /b/x)" {
		t.Errorf("unexpected message %q", got)
	}

	err = &APIError{Op: "list starred", StatusCode: 401, Err: ErrAPIAuth}
	if !errors.Is(err, ErrAPIAuth) {
		t.Errorf("APIError should unwrap to its kind")
	}

	err = &ConfigError{Field: "github.token", Err: ErrMissingToken}
	if !errors.Is(err, ErrMissingToken) {
		t.Errorf("ConfigError should unwrap")
	}
	if !strings.HasPrefix(err.Error(), "config: github.token") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
