package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/slipway-dev/slipway/types"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func sampleRun(id string, startedAt time.Time) *RunRecord {
	return &RunRecord{
		ID:         id,
		Version:    "v1.2.3",
		Outcome:    types.OutcomeSuccess,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(3 * time.Minute),
		Jobs: []JobRecord{
			{Platform: "linux", Status: types.StatusSuccess, Artifact: "demo-v1.2.3-linux.zip"},
			{Platform: "windows", Status: types.StatusFailure, Error: "linker exit 1"},
		},
	}
}

func TestAppendAndGet(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := j.Append(ctx, sampleRun("run-1", started)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := j.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Version != "v1.2.3" {
		t.Errorf("Version = %q", got.Version)
	}
	if got.Outcome != types.OutcomeSuccess {
		t.Errorf("Outcome = %q", got.Outcome)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if len(got.Jobs) != 2 {
		t.Fatalf("Jobs = %d, want 2", len(got.Jobs))
	}
	// Jobs come back sorted by platform.
	if got.Jobs[0].Platform != "linux" || got.Jobs[0].Status != types.StatusSuccess {
		t.Errorf("job[0] = %+v", got.Jobs[0])
	}
	if got.Jobs[1].Platform != "windows" || got.Jobs[1].Error != "linker exit 1" {
		t.Errorf("job[1] = %+v", got.Jobs[1])
	}
}

func TestGet_NotFound(t *testing.T) {
	j := openTestJournal(t)
	if _, err := j.Get(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("error = %v, want ErrRunNotFound", err)
	}
}

func TestRecent_NewestFirstAndLimited(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := j.Append(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Recent returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("order = [%s %s], want newest first", runs[0].ID, runs[1].ID)
	}
	if len(runs[0].Jobs) != 2 {
		t.Errorf("jobs not loaded for recent runs")
	}
}

func TestRecent_Empty(t *testing.T) {
	j := openTestJournal(t)
	runs, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("Recent returned %d runs, want 0", len(runs))
	}
}
