package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultBusyTimeout is used when Options.BusyTimeout is zero.
const DefaultBusyTimeout = 5 * time.Second

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("store closed")

// Options tunes the database connection.
type Options struct {
	BusyTimeout time.Duration
}

// Store is the SQLite trigger history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions is Open with explicit connection options.
func OpenWithOptions(path string, opts Options) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = DefaultBusyTimeout
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, busy.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := validateSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Ping checks that the database is reachable and its tables are present.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrClosed
	}
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	return validateSchema(ctx, s.db)
}

// Schema reports the applied and pending migrations.
func (s *Store) Schema() (*MigrationStatus, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	return migrationStatus(s.db)
}

// RecordRun stores the start of a process run. Recording the same run
// twice is a no-op.
func (s *Store) RecordRun(r Run) error {
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO runs (run_id, started_ns, backend, version)
		VALUES (?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixNano(), r.Backend, r.Version,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordTrigger inserts a trigger and returns its ID.
func (s *Store) RecordTrigger(t *Trigger) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	result, err := s.db.Exec(`
		INSERT INTO triggers (run_id, ts_ns, sequence, action, label, matched)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Time.UnixNano(), t.Sequence, t.Action, t.Label, t.Matched,
	)
	if err != nil {
		return 0, fmt.Errorf("insert trigger: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	t.ID = id
	return id, nil
}

const triggerColumns = `id, run_id, ts_ns, sequence, action, label, matched`

// RecentTriggers returns up to limit triggers, newest first.
func (s *Store) RecentTriggers(limit int) ([]Trigger, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryTriggers(`
		SELECT `+triggerColumns+` FROM triggers
		ORDER BY ts_ns DESC, id DESC LIMIT ?`, limit)
}

// TriggersForRun returns the triggers of one run in the order they fired.
func (s *Store) TriggersForRun(runID string) ([]Trigger, error) {
	return s.queryTriggers(`
		SELECT `+triggerColumns+` FROM triggers
		WHERE run_id = ? ORDER BY ts_ns, id`, runID)
}

func (s *Store) queryTriggers(query string, args ...any) ([]Trigger, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var (
			t  Trigger
			ts int64
		)
		if err := rows.Scan(&t.ID, &t.RunID, &ts, &t.Sequence, &t.Action, &t.Label, &t.Matched); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		t.Time = time.Unix(0, ts)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read triggers: %w", err)
	}
	return out, nil
}

// Stats returns matched and unmatched counts across all runs.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	if s.db == nil {
		return st, ErrClosed
	}

	var last sql.NullInt64
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN matched THEN 1 ELSE 0 END), 0),
		       MAX(ts_ns)
		FROM triggers`,
	).Scan(&st.Total, &st.Matched, &last)
	if err != nil {
		return st, fmt.Errorf("count triggers: %w", err)
	}
	st.Unmatched = st.Total - st.Matched
	if last.Valid {
		st.Last = time.Unix(0, last.Int64)
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&st.Runs); err != nil {
		return st, fmt.Errorf("count runs: %w", err)
	}
	return st, nil
}

// TopCombos returns the most used matched sequences.
func (s *Store) TopCombos(limit int) ([]ComboCount, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT sequence, MAX(label), COUNT(*) AS n FROM triggers
		WHERE matched GROUP BY sequence
		ORDER BY n DESC, sequence LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top combos: %w", err)
	}
	defer rows.Close()

	var out []ComboCount
	for rows.Next() {
		var c ComboCount
		if err := rows.Scan(&c.Sequence, &c.Label, &c.Count); err != nil {
			return nil, fmt.Errorf("scan combo count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Prune deletes triggers older than before and returns how many went.
func (s *Store) Prune(before time.Time) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	res, err := s.db.Exec(`DELETE FROM triggers WHERE ts_ns < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune triggers: %w", err)
	}
	return res.RowsAffected()
}
