package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tbscout/scout/internal/tracker"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	frame_w     INTEGER NOT NULL,
	frame_h     INTEGER NOT NULL,
	raw_count   INTEGER NOT NULL,
	match_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS matches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id    INTEGER NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
	group_key   TEXT NOT NULL,
	template    TEXT NOT NULL,
	x           INTEGER NOT NULL,
	y           INTEGER NOT NULL,
	width       INTEGER NOT NULL,
	height      INTEGER NOT NULL,
	confidence  REAL NOT NULL,
	tier        TEXT NOT NULL,
	frames_old  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_matches_cycle ON matches(cycle_id);
CREATE INDEX IF NOT EXISTS idx_matches_template ON matches(template);
`

// Recorder persists detection cycles to SQLite so sessions can be replayed
// and confidence drift inspected offline.
type Recorder struct {
	conn *sql.DB
	path string
}

// Open opens or creates the history database at path and applies the schema.
func Open(dbPath string) (*Recorder, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	// SQLite works best with a single connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &Recorder{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (r *Recorder) Path() string {
	return r.path
}

// RecordCycle writes one detection cycle and its tracked matches in a single
// transaction.
func (r *Recorder) RecordCycle(startedAt time.Time, duration time.Duration, frameW, frameH, rawCount int, matches []tracker.TrackedMatch) error {
	tx, err := r.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}

	res, err := tx.Exec(
		`INSERT INTO cycles (started_at, duration_ms, frame_w, frame_h, raw_count, match_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		startedAt, duration.Milliseconds(), frameW, frameH, rawCount, len(matches),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert cycle: %w", err)
	}

	cycleID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to resolve cycle id: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO matches (cycle_id, group_key, template, x, y, width, height, confidence, tier, frames_old)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare match insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		_, err := stmt.Exec(
			cycleID, m.GroupKey, m.Current.TemplateName,
			m.Current.X, m.Current.Y, m.Current.Width, m.Current.Height,
			m.Current.Confidence, string(m.Tier), m.FramesSinceSeen,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert match: %w", err)
		}
	}

	return tx.Commit()
}

// CycleCount reports the number of recorded cycles.
func (r *Recorder) CycleCount() (int, error) {
	var n int
	err := r.conn.QueryRow("SELECT COUNT(*) FROM cycles").Scan(&n)
	return n, err
}

// Prune deletes cycles older than the cutoff, cascading to their matches.
func (r *Recorder) Prune(olderThan time.Time) (int64, error) {
	res, err := r.conn.Exec("DELETE FROM cycles WHERE started_at < ?", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}
