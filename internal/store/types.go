// Package store provides SQLite-based trigger history for comboboard.
package store

import "time"

// Trigger is one completed sequence and what it resolved to.
type Trigger struct {
	ID       int64
	RunID    string
	Time     time.Time
	Sequence string // compact glyph form, e.g. "/^^"
	Action   string // empty when nothing matched
	Label    string
	Matched  bool
}

// Run is one process lifetime of the soundboard.
type Run struct {
	ID        string
	StartedAt time.Time
	Backend   string
	Version   string
}

// Stats summarizes the history.
type Stats struct {
	Total     int64
	Matched   int64
	Unmatched int64
	Runs      int64
	Last      time.Time
}

// ComboCount is a sequence and how many times it fired.
type ComboCount struct {
	Sequence string
	Label    string
	Count    int64
}
