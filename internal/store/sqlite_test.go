package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/convoscope/internal/analysis"
	"github.com/MikeSquared-Agency/convoscope/internal/session"
	"github.com/MikeSquared-Agency/convoscope/internal/xref"
)

func newMemStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func testRun(convID string, at time.Time) session.Run {
	res := &analysis.Result{
		Summary:               "summary for " + convID,
		UserSatisfactionScore: 82,
		ResponseEffectiveness: 74,
		OverallSentiment:      "positive",
		ConversationQuality:   analysis.QualityGood,
		KeyTopics:             []string{"billing"},
		SuggestedImprovements: []string{},
		BotResponseAnalysis: &analysis.BotResponseAnalysis{
			FollowsACPFormat: true,
			Strengths:        []analysis.Annotation{{Text: "clear", MessageIDs: []int{1, 3}}},
			Weaknesses:       []analysis.Annotation{{Text: "slow", MessageIDs: []int{99}}},
			ImprovementTips:  []analysis.Annotation{{Text: "faster"}},
		},
		ConversationID: convID,
		GeneratedAt:    at,
		Scorer:         "heuristic",
	}
	return session.Run{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Revision:       2,
		Sequence:       5,
		Scorer:         "heuristic",
		Result:         res,
		Linked:         xref.LinkedResult{Result: res, DanglingCount: 1},
	}
}

func annotationCount(t *testing.T, s *SQLiteStore, runID string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM analysis_annotations WHERE run_id = ?`, runID).Scan(&n); err != nil {
		t.Fatalf("count annotations: %v", err)
	}
	return n
}

func TestSQLite_SaveAndLatest(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	older := testRun("conv-001", base)
	newer := testRun("conv-001", base.Add(time.Minute))
	other := testRun("conv-002", base.Add(time.Hour))
	for _, r := range []session.Run{older, newer, other} {
		if err := s.SaveAnalysis(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	rec, err := s.Latest(ctx, "conv-001")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if rec.RunID != newer.ID {
		t.Errorf("expected newest run %s, got %s", newer.ID, rec.RunID)
	}
	if rec.Revision != 2 || rec.Quality != "Good" || rec.Satisfaction != 82 || rec.Dangling != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if !rec.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("expected created_at from generatedAt, got %v", rec.CreatedAt)
	}
	if rec.Result.Summary != "summary for conv-001" || len(rec.Result.BotResponseAnalysis.Strengths[0].MessageIDs) != 2 {
		t.Errorf("result did not round trip: %+v", rec.Result)
	}
	if n := annotationCount(t, s, newer.ID); n != 3 {
		t.Errorf("expected 3 annotations, got %d", n)
	}
}

func TestSQLite_LatestNotFound(t *testing.T) {
	s := newMemStore(t)
	if _, err := s.Latest(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_List(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := s.SaveAnalysis(ctx, testRun("conv-001", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	recs, err := s.List(ctx, "conv-001", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].CreatedAt.After(recs[i-1].CreatedAt) {
			t.Error("expected newest first")
		}
	}
}

func TestSQLite_Prune(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	old := testRun("conv-001", base.Add(-48*time.Hour))
	fresh := testRun("conv-001", base)
	for _, r := range []session.Run{old, fresh} {
		if err := s.SaveAnalysis(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	n, err := s.Prune(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if c := annotationCount(t, s, old.ID); c != 0 {
		t.Errorf("expected annotations of pruned run removed, got %d", c)
	}
	if c := annotationCount(t, s, fresh.ID); c != 3 {
		t.Errorf("expected annotations of kept run, got %d", c)
	}
}

func TestSQLite_SaveRejectsIncompleteRun(t *testing.T) {
	s := newMemStore(t)
	if err := s.SaveAnalysis(context.Background(), session.Run{ID: "x"}); err == nil {
		t.Error("expected error for run without result")
	}
	if err := s.SaveAnalysis(context.Background(), session.Run{}); err == nil {
		t.Error("expected error for run without id")
	}
}

func TestSQLite_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convoscope.db")
	ctx := context.Background()

	s, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	run := testRun("conv-file", time.Now().UTC())
	if err := s.SaveAnalysis(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	reopened, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	rec, err := reopened.Latest(ctx, "conv-file")
	if err != nil || rec.RunID != run.ID {
		t.Errorf("expected persisted run after reopen, got %+v err=%v", rec, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("open sqlite url: %v", err)
	}
	repo.Close()

	if _, err := Open(ctx, "mysql://localhost/db"); err == nil {
		t.Error("expected unsupported scheme error")
	}
	if _, err := NewSQLite(ctx, ""); err == nil {
		t.Error("expected error for empty path")
	}
}
