package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDecision(id, outcome string) *Decision {
	return &Decision{
		ID:         id,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Method:     "GET",
		Host:       "localhost",
		Path:       "/foo",
		Query:      "x=1",
		Outcome:    outcome,
		Location:   "https://localhost/foo?x=1",
		StatusCode: 301,
		LatencyMs:  3,
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	s := newTestStore(t)

	if err := s.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	version, err := s.currentVersion()
	if err != nil {
		t.Fatalf("currentVersion: %v", err)
	}
	if want := migrations[len(migrations)-1].Version; version != want {
		t.Errorf("migration version: got %d, want %d", version, want)
	}
}

func TestInsertAndQueryDecisions(t *testing.T) {
	s := newTestStore(t)

	if err := s.InsertDecision(sampleDecision("d1", OutcomeIntercept)); err != nil {
		t.Fatalf("InsertDecision: %v", err)
	}
	if err := s.InsertDecision(sampleDecision("d2", OutcomeForward)); err != nil {
		t.Fatalf("InsertDecision: %v", err)
	}

	decisions, err := s.RecentDecisions(10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}

	var intercept *Decision
	for _, d := range decisions {
		if d.ID == "d1" {
			intercept = d
		}
	}
	if intercept == nil {
		t.Fatal("decision d1 not found")
	}
	if intercept.Location != "https://localhost/foo?x=1" || intercept.StatusCode != 301 {
		t.Errorf("decision round-trip mismatch: %+v", intercept)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.InsertDecision(sampleDecision(fmt.Sprintf("i%d", i), OutcomeIntercept)); err != nil {
			t.Fatalf("InsertDecision: %v", err)
		}
	}
	fwd := sampleDecision("f1", OutcomeForward)
	fwd.ErrorMessage = "connection refused"
	if err := s.InsertDecision(fwd); err != nil {
		t.Fatalf("InsertDecision: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 || stats.Intercepts != 3 || stats.Forwards != 1 || stats.Errors != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)

	old := sampleDecision("old", OutcomeForward)
	old.Timestamp = time.Now().UTC().AddDate(0, 0, -40).Format(time.RFC3339)
	if err := s.InsertDecision(old); err != nil {
		t.Fatalf("InsertDecision: %v", err)
	}
	if err := s.InsertDecision(sampleDecision("new", OutcomeForward)); err != nil {
		t.Fatalf("InsertDecision: %v", err)
	}

	deleted, err := s.Prune(30)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned row, got %d", deleted)
	}

	decisions, err := s.RecentDecisions(10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(decisions) != 1 || decisions[0].ID != "new" {
		t.Errorf("expected only the recent decision to survive, got %+v", decisions)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
