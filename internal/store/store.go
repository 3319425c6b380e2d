// Package store persists accepted analyses to Postgres or SQLite.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/convoscope/internal/analysis"
	"github.com/MikeSquared-Agency/convoscope/internal/session"
)

// ErrNotFound is returned when no stored analysis matches.
var ErrNotFound = errors.New("analysis not found")

// Repository is implemented by both backends.
type Repository interface {
	SaveAnalysis(ctx context.Context, run session.Run) error
	Latest(ctx context.Context, conversationID string) (*Record, error)
	List(ctx context.Context, conversationID string, limit int) ([]Record, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close()
}

// Record is one stored analysis run.
type Record struct {
	RunID          string           `json:"runId"`
	ConversationID string           `json:"conversationId"`
	Revision       uint64           `json:"revision"`
	Scorer         string           `json:"scorer"`
	Quality        string           `json:"quality"`
	Satisfaction   int              `json:"userSatisfactionScore"`
	Effectiveness  int              `json:"responseEffectiveness"`
	Dangling       int              `json:"danglingReferences"`
	Result         *analysis.Result `json:"result"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// annotationRow is one annotation flattened for the annotations table.
type annotationRow struct {
	kind       string
	text       string
	messageIDs []int
}

// Open picks a backend from the URL scheme: sqlite://path or a postgres URL.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		s, err := NewSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		s, err := New(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", schemeOf(databaseURL))
	}
}

func schemeOf(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		return u[:i]
	}
	return u
}

func validateRun(run session.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}
	if run.Result == nil {
		return fmt.Errorf("run %s has no result", run.ID)
	}
	return nil
}

func annotationsOf(r *analysis.Result) []annotationRow {
	if r.BotResponseAnalysis == nil {
		return nil
	}
	var rows []annotationRow
	add := func(kind string, anns []analysis.Annotation) {
		for _, a := range anns {
			ids := a.MessageIDs
			if ids == nil {
				ids = []int{}
			}
			rows = append(rows, annotationRow{kind: kind, text: a.Text, messageIDs: ids})
		}
	}
	add("strength", r.BotResponseAnalysis.Strengths)
	add("weakness", r.BotResponseAnalysis.Weaknesses)
	add("tip", r.BotResponseAnalysis.ImprovementTips)
	return rows
}

func decodeResult(raw []byte) (*analysis.Result, error) {
	var r analysis.Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode stored result: %w", err)
	}
	return &r, nil
}

const defaultListLimit = 20

func listLimit(n int) int {
	if n <= 0 || n > 500 {
		return defaultListLimit
	}
	return n
}
