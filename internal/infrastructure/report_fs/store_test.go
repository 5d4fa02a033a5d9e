package report_fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davarch/star-backup/internal/domain"
)

func TestStore_WriteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backups", domain.ReportFileName)

	s := New(path)
	r := domain.NewRunReport(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), []domain.BackupOutcome{
		{Name: "acme/one", Status: domain.StatusSuccess},
		{Name: "acme/two", Status: domain.StatusFailed, Error: "git clone: exit status 128", Attempts: 3},
	})
	if err := s.Write(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"timestamp", "succeeded", "failed", "total", "success_count", "failure_count"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("missing key %q in %s", k, b)
		}
	}
	if raw["timestamp"] != "2026-10-18T09:00:00Z" {
		t.Errorf("timestamp %v", raw["timestamp"])
	}
	failed := raw["failed"].([]any)[0].(map[string]any)
	if failed["name"] != "acme/two" || failed["error"] != "git clone: exit status 128" {
		t.Errorf("failed entry %v", failed)
	}
}

func TestStore_OverwritesAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, domain.ReportFileName))
	ctx := context.Background()

	first := domain.NewRunReport(time.Unix(100, 0), []domain.BackupOutcome{{Name: "a/b", Status: domain.StatusSuccess}})
	second := domain.NewRunReport(time.Unix(200, 0), nil)

	if err := s.Write(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Total != 0 || len(got.Succeeded) != 0 || !got.Timestamp.Equal(second.Timestamp) {
		t.Errorf("expected second report, got %+v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestStore_ReadMissing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.json")).Read(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestStore_EmptyPath(t *testing.T) {
	if err := New("").Write(context.Background(), domain.RunReport{}); err == nil {
		t.Fatal("expected error")
	}
}
