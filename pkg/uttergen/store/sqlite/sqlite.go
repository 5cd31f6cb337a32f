package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/uttergen/pkg/uttergen/internalerr"
	"github.com/cognicore/uttergen/pkg/uttergen/store"
	"github.com/cognicore/uttergen/pkg/uttergen/utterance"
)

// timeLayout is fixed width so started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
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
	use_case TEXT NOT NULL,
	folder TEXT,
	started_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS utterances (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	use_case TEXT NOT NULL,
	combination_id TEXT NOT NULL,
	utterance TEXT NOT NULL,
	tag TEXT NOT NULL,
	amr TEXT NOT NULL,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_utterances_use_case ON utterances(use_case, combination_id);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// BeginRun inserts a run row
func (s *sqliteStore) BeginRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is required", internalerr.ErrInvalidInput)
	}

	const stmt = `INSERT INTO runs (id, use_case, folder, started_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt, r.ID, r.UseCase, r.Folder, r.StartedAt.UTC().Format(timeLayout))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: run %s", internalerr.ErrDuplicate, r.ID)
	}
	return err
}

// GetRun looks up a run by id
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	const q = `SELECT id, use_case, folder, started_at FROM runs WHERE id = ?`

	var (
		r       store.Run
		folder  sql.NullString
		started string
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(&r.ID, &r.UseCase, &folder, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}

	r.Folder = folder.String
	if t, err := time.Parse(timeLayout, started); err == nil {
		r.StartedAt = t
	}
	return r, true, nil
}

// AppendUtterances stores us after the utterances already recorded for the run
func (s *sqliteStore) AppendUtterances(ctx context.Context, runID string, us []utterance.Utterance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var useCase string
	err = tx.QueryRowContext(ctx, `SELECT use_case FROM runs WHERE id = ?`, runID).Scan(&useCase)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}
	if err != nil {
		return err
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM utterances WHERE run_id = ?`, runID).Scan(&next); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO utterances (run_id, seq, use_case, combination_id, utterance, tag, amr)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, u := range us {
		amr, err := json.Marshal(nonNil(u.AMR))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, next+i, useCase, u.CombinationID, u.Utterance, u.Tag, string(amr)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListUtterances returns stored utterances ordered by run and sequence
func (s *sqliteStore) ListUtterances(ctx context.Context, q store.Query) ([]store.Record, error) {
	var (
		where []string
		args  []any
	)
	if q.RunID != "" {
		where = append(where, "u.run_id = ?")
		args = append(args, q.RunID)
	}
	if q.UseCase != "" {
		where = append(where, "u.use_case = ?")
		args = append(args, q.UseCase)
	}
	if q.CombinationID != "" {
		where = append(where, "u.combination_id = ?")
		args = append(args, q.CombinationID)
	}

	query := `
SELECT u.run_id, u.use_case, u.seq, u.utterance, u.tag, u.amr, u.combination_id
FROM utterances u
JOIN runs r ON r.id = u.run_id`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY r.started_at, u.run_id, u.seq"
	if q.Limit > 0 {
		query += "\nLIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var (
			rec store.Record
			amr string
		)
		if err := rows.Scan(&rec.RunID, &rec.UseCase, &rec.Seq, &rec.Utterance.Utterance, &rec.Tag, &amr, &rec.CombinationID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(amr), &rec.AMR); err != nil {
			return nil, fmt.Errorf("decode amr for %s/%d: %w", rec.RunID, rec.Seq, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nonNil(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	return codes
}
