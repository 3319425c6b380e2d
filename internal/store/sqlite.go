package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/convoscope/internal/session"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	revision        INTEGER NOT NULL,
	sequence        INTEGER NOT NULL,
	scorer          TEXT NOT NULL,
	quality         TEXT NOT NULL,
	satisfaction    INTEGER NOT NULL,
	effectiveness   INTEGER NOT NULL,
	sentiment       TEXT NOT NULL,
	dangling        INTEGER NOT NULL DEFAULT 0,
	result          TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_conversation ON analysis_runs (conversation_id, created_at);
CREATE TABLE IF NOT EXISTS analysis_annotations (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	text        TEXT NOT NULL,
	message_ids TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_analysis_annotations_run ON analysis_annotations (run_id);`

// SQLiteStore is the single-file backend for local use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and creates) the database at path. ":memory:" is allowed.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports a single writer; one connection also keeps
	// an in-memory database alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, run session.Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	raw, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	r := run.Result
	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, conversation_id, revision, sequence, scorer, quality, satisfaction, effectiveness, sentiment, dangling, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ConversationID, int64(run.Revision), int64(run.Sequence), r.Scorer,
		string(r.ConversationQuality), r.UserSatisfactionScore, r.ResponseEffectiveness,
		r.OverallSentiment, run.Linked.DanglingCount, string(raw), generatedAt(r.GeneratedAt).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, a := range annotationsOf(r) {
		ids, err := json.Marshal(a.messageIDs)
		if err != nil {
			return fmt.Errorf("marshal message ids: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO analysis_annotations (id, run_id, kind, text, message_ids)
			VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), run.ID, a.kind, a.text, string(ids),
		)
		if err != nil {
			return fmt.Errorf("insert annotation: %w", err)
		}
	}

	return tx.Commit()
}

const sqliteSelectRuns = `
	SELECT id, conversation_id, revision, scorer, quality, satisfaction, effectiveness, dangling, result, created_at
	FROM analysis_runs`

func (s *SQLiteStore) Latest(ctx context.Context, conversationID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectRuns+`
		WHERE conversation_id = ?
		ORDER BY created_at DESC
		LIMIT 1`, conversationID)
	rec, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) List(ctx context.Context, conversationID string, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectRuns+`
		WHERE conversation_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, conversationID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Prune deletes runs created before the cutoff along with their annotations.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cutoff := before.UnixNano()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM analysis_annotations
		WHERE run_id IN (SELECT id FROM analysis_runs WHERE created_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("prune annotations: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM analysis_runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*Record, error) {
	var (
		rec      Record
		revision int64
		raw      string
		created  int64
	)
	if err := row.Scan(&rec.RunID, &rec.ConversationID, &revision, &rec.Scorer, &rec.Quality,
		&rec.Satisfaction, &rec.Effectiveness, &rec.Dangling, &raw, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	res, err := decodeResult([]byte(raw))
	if err != nil {
		return nil, err
	}
	rec.Revision = uint64(revision)
	rec.Result = res
	rec.CreatedAt = time.Unix(0, created).UTC()
	return &rec, nil
}
