package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAndClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should not error: %v", err)
	}
	if _, err := s.RecordTrigger(&Trigger{}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "subdir", "nested", "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
}

func TestMigrations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := validateSchema(ctx, s.db); err != nil {
		t.Fatalf("schema invalid: %v", err)
	}

	status, err := s.Schema()
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if status.CurrentVersion != len(migrations) || status.LatestVersion != len(migrations) {
		t.Errorf("expected version %d, got %+v", len(migrations), status)
	}
	if len(status.Pending) != 0 || len(status.Applied) != len(migrations) {
		t.Errorf("unexpected migration status %+v", status)
	}

	// Re-running is a no-op.
	if err := MigrateDB(s.db); err != nil {
		t.Fatalf("second MigrateDB failed: %v", err)
	}
}

func TestMigrationStatusFreshDB(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	status, err := migrationStatus(db)
	if err != nil {
		t.Fatalf("migrationStatus failed: %v", err)
	}
	if status.CurrentVersion != 0 || len(status.Pending) != len(migrations) {
		t.Errorf("unexpected status %+v", status)
	}
	if err := validateSchema(context.Background(), db); err == nil {
		t.Error("an empty database should fail the schema check")
	}
}

func TestRecordAndRecentTriggers(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1700000000, 0)

	triggers := []Trigger{
		{RunID: "run-1", Time: base, Sequence: "<^", Action: "play", Label: "spongebob-fail", Matched: true},
		{RunID: "run-1", Time: base.Add(time.Second), Sequence: "<", Matched: false},
		{RunID: "run-1", Time: base.Add(2 * time.Second), Sequence: "/", Action: "toggle_mute", Label: "mute", Matched: true},
	}
	for i := range triggers {
		id, err := s.RecordTrigger(&triggers[i])
		if err != nil {
			t.Fatalf("RecordTrigger failed: %v", err)
		}
		if id <= 0 || triggers[i].ID != id {
			t.Errorf("expected ID to be set, got %d", id)
		}
	}

	recent, err := s.RecentTriggers(2)
	if err != nil {
		t.Fatalf("RecentTriggers failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 triggers, got %d", len(recent))
	}
	if recent[0].Sequence != "/" || recent[1].Sequence != "<" {
		t.Errorf("expected newest first, got %s, %s", recent[0].Sequence, recent[1].Sequence)
	}
	if recent[1].Matched || recent[1].Action != "" {
		t.Errorf("unmatched trigger round trip failed: %+v", recent[1])
	}
	if !recent[0].Time.Equal(base.Add(2 * time.Second)) {
		t.Errorf("time mismatch: %v", recent[0].Time)
	}
	if recent[0].Label != "mute" {
		t.Errorf("label mismatch: %s", recent[0].Label)
	}
}

func TestTriggersForRun(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	for i, run := range []string{"a", "b", "a"} {
		if _, err := s.RecordTrigger(&Trigger{RunID: run, Time: now.Add(time.Duration(i) * time.Millisecond), Sequence: "^", Matched: true}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.TriggersForRun("a")
	if err != nil {
		t.Fatalf("TriggersForRun failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if !got[0].Time.Before(got[1].Time) {
		t.Error("expected oldest first")
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Total != 0 || !st.Last.IsZero() {
		t.Errorf("expected empty stats, got %+v", st)
	}

	now := time.Unix(1700000000, 0)
	if err := s.RecordRun(Run{ID: "run-1", StartedAt: now, Backend: "simulated"}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := s.RecordRun(Run{ID: "run-1", StartedAt: now, Backend: "simulated"}); err != nil {
		t.Fatalf("duplicate RecordRun failed: %v", err)
	}
	for i, matched := range []bool{true, true, false} {
		_, err := s.RecordTrigger(&Trigger{RunID: "run-1", Time: now.Add(time.Duration(i) * time.Second), Sequence: "v", Matched: matched})
		if err != nil {
			t.Fatal(err)
		}
	}

	st, err = s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Total != 3 || st.Matched != 2 || st.Unmatched != 1 {
		t.Errorf("unexpected counts %+v", st)
	}
	if st.Runs != 1 {
		t.Errorf("expected 1 run, got %d", st.Runs)
	}
	if !st.Last.Equal(now.Add(2 * time.Second)) {
		t.Errorf("unexpected last %v", st.Last)
	}
}

func TestTopCombos(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	for i, seq := range []string{"<>", "<>", "vv", "<>", "vv", "^"} {
		_, err := s.RecordTrigger(&Trigger{RunID: "r", Time: now.Add(time.Duration(i)), Sequence: seq, Label: seq + "-label", Matched: true})
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.RecordTrigger(&Trigger{RunID: "r", Time: now, Sequence: "<<", Matched: false}); err != nil {
		t.Fatal(err)
	}

	top, err := s.TopCombos(2)
	if err != nil {
		t.Fatalf("TopCombos failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2, got %d", len(top))
	}
	if top[0].Sequence != "<>" || top[0].Count != 3 || top[0].Label != "<>-label" {
		t.Errorf("unexpected first %+v", top[0])
	}
	if top[1].Sequence != "vv" || top[1].Count != 2 {
		t.Errorf("unexpected second %+v", top[1])
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		if _, err := s.RecordTrigger(&Trigger{RunID: "r", Time: base.Add(time.Duration(i) * time.Hour), Sequence: "^"}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Prune(base.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned, got %d", n)
	}
	st, _ := s.Stats()
	if st.Total != 3 {
		t.Errorf("expected 3 left, got %d", st.Total)
	}
}

func TestSchemaAfterClose(t *testing.T) {
	s := openTestStore(t)
	s.Close()
	if _, err := s.Schema(); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if _, err := s.db.Exec(`DROP TABLE runs`); err != nil {
		t.Fatalf("drop runs: %v", err)
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping should fail when a table is missing")
	}

	s.Close()
	if err := s.Ping(context.Background()); err != ErrClosed {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}
