package state

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_SaveAndLoadRun(t *testing.T) {
	out := t.TempDir()
	store, err := NewStore(out)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	run := Run{
		RunID:     "run-1",
		Workflow:  "16s",
		GraphHash: "gh",
		StartTime: time.Unix(10, 0).UTC(),
		Jobs:      2,
		Status:    RunStatusRunning,
	}
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, ".bioweaver", "runs", "run-1", "run.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "\"end_time\": null") {
		t.Fatalf("expected end_time to be null; got: %s", data)
	}

	loaded, err := store.LoadRun("run-1")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.Workflow != "16s" || loaded.Jobs != 2 || !loaded.StartTime.Equal(run.StartTime) {
		t.Fatalf("loaded run mismatch: %+v", loaded)
	}
}

func TestStore_RejectsInvalidRun(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	err := store.SaveRun(Run{RunID: "x", Status: "paused"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"workflow", "start_time", "jobs", "paused"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}

func TestStore_LoadRunRejectsUnknownFields(t *testing.T) {
	out := t.TempDir()
	store, _ := NewStore(out)
	dir := filepath.Join(out, ".bioweaver", "runs", "bad")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.json"), []byte(`{"run_id":"bad","extra":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadRun("bad"); err == nil {
		t.Fatal("expected strict decode error")
	}
}

func TestStore_HistoryOrdersByStartTime(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	for i, id := range []string{"zzz", "aaa", "mmm"} {
		run := Run{RunID: id, Workflow: "wmgx", StartTime: time.Unix(int64(100-i), 0).UTC(), Jobs: 1, Status: RunStatusSucceeded}
		if err := store.SaveRun(run); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	runs, err := store.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var got []string
	for _, r := range runs {
		got = append(got, r.RunID)
	}
	if strings.Join(got, ",") != "mmm,aaa,zzz" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestStore_EmptyHistory(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	runs, err := store.History()
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected no runs, got %v err=%v", runs, err)
	}
}

func TestRecorder_FailRecordsFailure(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	rec, err := Start(store, Run{Workflow: "wmgx", GraphHash: "gh", Jobs: 1})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if rec.Run.RunID == "" {
		t.Fatal("expected a generated run id")
	}
	if _, err := store.LoadFailure(rec.Run.RunID); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected no failure yet, got %v", err)
	}

	counts := Counts{Executed: 2, Failed: 1, Skipped: 3}
	cause := &ExecutionFailureError{TaskID: "humann2_S1", Code: "TaskFailed", Message: "exit code 1"}
	if err := rec.Fail(counts, cause); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	run, err := store.LoadRun(rec.Run.RunID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if run.Status != RunStatusFailed || run.EndTime == nil || run.Counts != counts {
		t.Fatalf("unexpected run: %+v", run)
	}
	f, err := store.LoadFailure(rec.Run.RunID)
	if err != nil {
		t.Fatalf("LoadFailure: %v", err)
	}
	if f.TaskID == nil || *f.TaskID != "humann2_S1" {
		t.Fatalf("unexpected failure: %+v", f)
	}
}

func TestRecorder_Succeed(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	rec, err := Start(store, Run{RunID: "r", Workflow: "16s", Jobs: 4})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.Succeed(Counts{Cached: 7}); err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	run, err := store.LoadRun("r")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if run.Status != RunStatusSucceeded || run.Counts.Cached != 7 {
		t.Fatalf("unexpected run: %+v", run)
	}
}
