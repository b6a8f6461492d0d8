package results

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/bufgrind/harness"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func report(id string, started time.Time) *harness.RunReport {
	return &harness.RunReport{
		ID:       id,
		Device:   "/dev/mapper/bufio-test",
		Started:  started,
		Finished: started.Add(time.Second),
		Programs: []harness.ProgramResult{
			{Index: 0, Bytes: 31, Duration: time.Second},
		},
	}
}

func TestRecordAndLastRun(t *testing.T) {
	s := openTestStore(t)
	started := time.Date(2026, 8, 25, 10, 0, 0, 123456789, time.UTC)

	if err := s.Record("/bufio/new-buf", report("run-1", started), nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := s.Record("/bufio/new-buf", report("run-2", started.Add(time.Minute)), nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	run, err := s.LastRun("/bufio/new-buf")
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if run.ID != "run-2" {
		t.Errorf("LastRun ID = %q, want run-2", run.ID)
	}
	if run.Scenario != "/bufio/new-buf" {
		t.Errorf("scenario = %q, want /bufio/new-buf", run.Scenario)
	}
	if !run.Pass {
		t.Error("run recorded with nil error is not a pass")
	}
	if !run.Started.Equal(started.Add(time.Minute)) {
		t.Errorf("started = %v, want %v", run.Started, started.Add(time.Minute))
	}
	if run.Report == nil || len(run.Report.Programs) != 1 {
		t.Fatalf("report did not round trip: %+v", run.Report)
	}
	if run.Report.Programs[0].Bytes != 31 {
		t.Errorf("report program bytes = %d, want 31", run.Report.Programs[0].Bytes)
	}
}

func TestRecordFailure(t *testing.T) {
	s := openTestStore(t)
	started := time.Now().UTC()

	runErr := errors.New("program 3: device gone")
	if err := s.Record("/bufio/stamper", report("run-f", started), runErr); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	run, err := s.LastRun("/bufio/stamper")
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if run.Pass {
		t.Error("failed run recorded as pass")
	}
	if run.Error != runErr.Error() {
		t.Errorf("error = %q, want %q", run.Error, runErr.Error())
	}
}

func TestLastRunUnknownScenario(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LastRun("/bufio/none")
	if !errors.Is(err, ErrNoRuns) {
		t.Fatalf("error = %v, want ErrNoRuns", err)
	}
}

func TestHistory(t *testing.T) {
	s := openTestStore(t)
	started := time.Now().UTC().Truncate(time.Second)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		rep := report(id, started.Add(time.Duration(i)*time.Minute))
		if err := s.Record("/bufio/many-stampers", rep, nil); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	// A different scenario must not show up in the history.
	if err := s.Record("/bufio/create", report("run-x", started), nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	runs, err := s.History("/bufio/many-stampers")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("History returned %d runs, want 3", len(runs))
	}
	// Newest first.
	for i, want := range []string{"run-c", "run-b", "run-a"} {
		if runs[i].ID != want {
			t.Errorf("runs[%d].ID = %q, want %q", i, runs[i].ID, want)
		}
	}
}

func TestDuplicateRunID(t *testing.T) {
	s := openTestStore(t)
	started := time.Now().UTC()

	if err := s.Record("/bufio/create", report("run-dup", started), nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := s.Record("/bufio/create", report("run-dup", started), nil); err == nil {
		t.Error("recording a duplicate run ID succeeded")
	}
}
