package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)

	run := &model.Run{
		RequestID: "req-1",
		DocType:   "catalog",
	}
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("expected run ID to be assigned")
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.RequestID != "req-1" || got.DocType != "catalog" {
		t.Errorf("got %+v", got)
	}
	if got.Status != model.RunStatusRunning {
		t.Errorf("status = %q, want running", got.Status)
	}
}

func TestUpdateRunTerminalState(t *testing.T) {
	s := newTestStore(t)

	run := &model.Run{RequestID: "req-2", DocType: "consignment-agreement"}
	if err := s.CreateRun(run); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	run.Status = model.RunStatusCompleted
	run.FinishedAt = &now
	run.DurationMS = 4200
	run.Bytes = 1024
	run.Checksum = "abc123"
	run.ArtifactData = []byte("%PDF-1.4 test")
	if err := s.UpdateRun(run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.RunStatusCompleted || got.DurationMS != 4200 || got.Checksum != "abc123" {
		t.Errorf("got %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not persisted")
	}

	data, docType, err := s.GetRunArtifact(run.ID)
	if err != nil {
		t.Fatalf("GetRunArtifact: %v", err)
	}
	if string(data) != "%PDF-1.4 test" || docType != "consignment-agreement" {
		t.Errorf("artifact = %q, docType = %q", data, docType)
	}
}

func TestGetRunArtifactMissing(t *testing.T) {
	s := newTestStore(t)

	run := &model.Run{RequestID: "req-3", DocType: "catalog"}
	if err := s.CreateRun(run); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.GetRunArtifact(run.ID); err == nil {
		t.Error("expected error for run without artifact")
	}
	if _, _, err := s.GetRunArtifact(99999); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		run := &model.Run{
			RequestID: fmt.Sprintf("req-%d", i),
			DocType:   "story",
			StartedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := s.CreateRun(run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].RequestID != "req-4" {
		t.Errorf("first run = %s, want req-4", runs[0].RequestID)
	}
}

func TestPurgeBefore(t *testing.T) {
	s := newTestStore(t)

	old := &model.Run{RequestID: "old", DocType: "story", StartedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := &model.Run{RequestID: "fresh", DocType: "story"}
	if err := s.CreateRun(old); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRun(fresh); err != nil {
		t.Fatal(err)
	}

	purged, err := s.PurgeBefore(time.Now().UTC().Add(-24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("purged %d rows, want 1", purged)
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].RequestID != "fresh" {
		t.Errorf("remaining runs: %+v", runs)
	}
}

// Concurrent writers must all succeed; the write queue serializes them onto
// the single SQLite connection.
func TestConcurrentWrites(t *testing.T) {
	s := newTestStore(t)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run := &model.Run{RequestID: fmt.Sprintf("concurrent-%d", i), DocType: "catalog"}
			if err := s.CreateRun(run); err != nil {
				errs <- err
				return
			}
			run.Status = model.RunStatusCompleted
			errs <- s.UpdateRun(run)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent write failed: %v", err)
		}
	}

	runs, err := s.ListRuns(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != writers {
		t.Errorf("got %d runs, want %d", len(runs), writers)
	}
}

func TestOversizeArtifactNotRetained(t *testing.T) {
	s := newTestStore(t)

	run := &model.Run{
		RequestID:    "big",
		DocType:      "car-pdf",
		ArtifactData: make([]byte, maxArtifactBytes+1),
	}
	if err := s.CreateRun(run); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.GetRunArtifact(run.ID); err == nil {
		t.Error("oversize artifact should not be retained")
	}
}
