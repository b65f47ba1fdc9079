package storage

import (
	"path/filepath"
	"testing"
	"time"

	"rentradar/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)

	run := &models.SweepRun{
		University: "UNSW",
		Source:     "domain",
		StartedAt:  time.Now().Add(-10 * time.Minute),
		Status:     models.RunStatusRunning,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if id == 0 {
		t.Fatal("CreateRun returned id 0")
	}
	run.ID = id

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.Scraped = 120
	run.WithDetails = 110
	run.Scored = 110
	run.Saved = 118
	run.ExportFile = "UNSW_rentdata_260224.csv"
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	if err := store.UpdateSourceStats("domain"); err != nil {
		t.Fatalf("UpdateSourceStats: %v", err)
	}
	stats, err := store.GetSourceStats("domain")
	if err != nil {
		t.Fatalf("GetSourceStats: %v", err)
	}
	if stats == nil {
		t.Fatal("no stats row after update")
	}
	if stats.TotalRuns != 1 || stats.LastRunStatus != "completed" {
		t.Errorf("stats = %+v", stats)
	}
	if stats.SuccessRate != 1.0 {
		t.Errorf("success rate = %v, want 1.0", stats.SuccessRate)
	}

	if stats, err := store.GetSourceStats("realestate"); err != nil || stats != nil {
		t.Errorf("untracked source gave %+v, %v", stats, err)
	}
}

func TestCommandQueue(t *testing.T) {
	store := newTestStore(t)

	if err := store.EnqueueCommand("run_university", &models.CommandParams{University: "USYD"}); err != nil {
		t.Fatalf("EnqueueCommand: %v", err)
	}
	if err := store.EnqueueCommand("pause", nil); err != nil {
		t.Fatalf("EnqueueCommand without params: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("GetPendingCommands: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("got %d pending commands, want 2", len(cmds))
	}
	if cmds[0].Command != models.CmdRunUniversity {
		t.Errorf("first command = %s", cmds[0].Command)
	}

	params, err := store.ParseCommandParams(&cmds[0])
	if err != nil {
		t.Fatalf("ParseCommandParams: %v", err)
	}
	if params.University != "USYD" {
		t.Errorf("params.University = %q", params.University)
	}

	empty, err := store.ParseCommandParams(&cmds[1])
	if err != nil {
		t.Fatalf("ParseCommandParams empty: %v", err)
	}
	if empty.University != "" {
		t.Errorf("empty params gave %+v", empty)
	}

	if err := store.MarkCommandProcessed(cmds[0].ID); err != nil {
		t.Fatalf("MarkCommandProcessed: %v", err)
	}
	remaining, err := store.GetPendingCommands()
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].Command != models.CmdPause {
		t.Errorf("remaining = %+v", remaining)
	}
}

func TestLogWithAndWithoutRun(t *testing.T) {
	store := newTestStore(t)

	runID := int64(7)
	if err := store.Log(&runID, models.LogLevelInfo, "sweep started", "UNSW"); err != nil {
		t.Fatalf("Log with run: %v", err)
	}
	if err := store.Log(nil, models.LogLevelError, "daemon error", ""); err != nil {
		t.Fatalf("Log without run: %v", err)
	}

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM sweep_logs`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("log rows = %d, want 2", count)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abcd" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("ab", 4); got != "ab" {
		t.Errorf("truncate short = %q", got)
	}
}
