package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/convoscope/internal/session"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id              UUID PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	revision        BIGINT NOT NULL,
	sequence        BIGINT NOT NULL,
	scorer          TEXT NOT NULL,
	quality         TEXT NOT NULL,
	satisfaction    INT NOT NULL,
	effectiveness   INT NOT NULL,
	sentiment       TEXT NOT NULL,
	dangling        INT NOT NULL DEFAULT 0,
	result          JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_conversation ON analysis_runs (conversation_id, created_at DESC);
CREATE TABLE IF NOT EXISTS analysis_annotations (
	id          UUID PRIMARY KEY,
	run_id      UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
	kind        TEXT NOT NULL,
	text        TEXT NOT NULL,
	message_ids INT[] NOT NULL DEFAULT '{}'
);`

// Store is the Postgres backend.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// SaveAnalysis writes the run and its annotations in one transaction.
func (s *Store) SaveAnalysis(ctx context.Context, run session.Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	runID, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("parse run id: %w", err)
	}
	raw, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	r := run.Result
	_, err = tx.Exec(ctx, `
		INSERT INTO analysis_runs (id, conversation_id, revision, sequence, scorer, quality, satisfaction, effectiveness, sentiment, dangling, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		runID, run.ConversationID, int64(run.Revision), int64(run.Sequence), r.Scorer,
		string(r.ConversationQuality), r.UserSatisfactionScore, r.ResponseEffectiveness,
		r.OverallSentiment, run.Linked.DanglingCount, raw, generatedAt(r.GeneratedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, a := range annotationsOf(r) {
		_, err = tx.Exec(ctx, `
			INSERT INTO analysis_annotations (id, run_id, kind, text, message_ids)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), runID, a.kind, a.text, a.messageIDs,
		)
		if err != nil {
			return fmt.Errorf("insert annotation: %w", err)
		}
	}

	return tx.Commit(ctx)
}

const pgSelectRuns = `
	SELECT id, conversation_id, revision, scorer, quality, satisfaction, effectiveness, dangling, result, created_at
	FROM analysis_runs`

func (s *Store) Latest(ctx context.Context, conversationID string) (*Record, error) {
	row := s.pool.QueryRow(ctx, pgSelectRuns+`
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, conversationID)
	rec, err := scanPG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *Store) List(ctx context.Context, conversationID string, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, pgSelectRuns+`
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, conversationID, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanPG(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Prune deletes runs created before the cutoff. Annotations cascade.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analysis_runs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPG(row pgx.Row) (*Record, error) {
	var (
		rec      Record
		id       uuid.UUID
		revision int64
		raw      []byte
	)
	if err := row.Scan(&id, &rec.ConversationID, &revision, &rec.Scorer, &rec.Quality,
		&rec.Satisfaction, &rec.Effectiveness, &rec.Dangling, &raw, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	res, err := decodeResult(raw)
	if err != nil {
		return nil, err
	}
	rec.RunID = id.String()
	rec.Revision = uint64(revision)
	rec.Result = res
	return &rec, nil
}

func generatedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
