package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/korpus/pkg/korpus/codec"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/store"
)

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	topic TEXT NOT NULL,
	started_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_topic ON runs(topic);

CREATE TABLE IF NOT EXISTS dictionary_entries (
	run_id TEXT NOT NULL,
	token TEXT NOT NULL,
	id INTEGER NOT NULL,
	PRIMARY KEY(run_id, id),
	UNIQUE(run_id, token),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS split_stats (
	run_id TEXT NOT NULL,
	split TEXT NOT NULL,
	articles INTEGER NOT NULL,
	tokens INTEGER NOT NULL,
	unknown INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(run_id, split),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertRun inserts or updates a run row
func (s *sqliteStore) UpsertRun(ctx context.Context, r store.Run) error {
	const stmt = `
INSERT INTO runs (id, topic, started_at)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	topic=excluded.topic,
	started_at=excluded.started_at;
`
	_, err := s.db.ExecContext(ctx, stmt, r.ID, r.Topic, r.StartedAt.UTC().Format(timeLayout))
	return err
}

// GetRun retrieves a run by id
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, topic, started_at FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	return r, true, nil
}

// RunsByTopic lists the runs of a topic, oldest first
func (s *sqliteStore) RunsByTopic(ctx context.Context, topic string) ([]store.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, topic, started_at FROM runs WHERE topic = ? ORDER BY started_at, id`, topic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (store.Run, error) {
	var r store.Run
	var started string
	if err := sc.Scan(&r.ID, &r.Topic, &started); err != nil {
		return store.Run{}, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return store.Run{}, fmt.Errorf("run %s: parse started_at: %w", r.ID, err)
	}
	r.StartedAt = t
	return r, nil
}

// ReplaceDictionary stores d as the dictionary of runID, dropping any
// previous entries of that run.
func (s *sqliteStore) ReplaceDictionary(ctx context.Context, runID string, d *codec.Dictionary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dictionary_entries WHERE run_id=?`, runID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dictionary_entries (run_id, token, id) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for id, tok := range d.Tokens() {
		if _, err := stmt.ExecContext(ctx, runID, tok, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetDictionary rebuilds the dictionary stored for runID
func (s *sqliteStore) GetDictionary(ctx context.Context, runID string) (*codec.Dictionary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token FROM dictionary_entries WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("dictionary of run %s: %w", runID, internalerr.ErrNotFound)
	}
	return codec.FromTokens(tokens)
}

// UpsertSplit inserts or updates the counts of one split
func (s *sqliteStore) UpsertSplit(ctx context.Context, runID string, st store.SplitStats) error {
	const stmt = `
INSERT INTO split_stats (run_id, split, articles, tokens, unknown)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(run_id, split) DO UPDATE SET
	articles=excluded.articles,
	tokens=excluded.tokens,
	unknown=excluded.unknown;
`
	_, err := s.db.ExecContext(ctx, stmt, runID, st.Name, st.Articles, st.Tokens, st.Unknown)
	return err
}

// GetSplits returns the split counts of a run ordered by split name
func (s *sqliteStore) GetSplits(ctx context.Context, runID string) ([]store.SplitStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT split, articles, tokens, unknown FROM split_stats WHERE run_id = ? ORDER BY split`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SplitStats
	for rows.Next() {
		var st store.SplitStats
		if err := rows.Scan(&st.Name, &st.Articles, &st.Tokens, &st.Unknown); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
