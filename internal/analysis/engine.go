package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
)

// ErrAnalysisFailed is matched by every error Analyze returns.
var ErrAnalysisFailed = errors.New("analysis failed")

// FailedError carries the reason a scoring run was rejected.
type FailedError struct {
	Reason string
	Err    error
}

func (e *FailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis failed: %s: %v", e.Reason, e.Err)
	}
	return "analysis failed: " + e.Reason
}

func (e *FailedError) Is(target error) bool { return target == ErrAnalysisFailed }

func (e *FailedError) Unwrap() error { return e.Err }

func failed(reason string, err error) error {
	return &FailedError{Reason: reason, Err: err}
}

// Scorer is the pluggable step that turns a conversation into a raw result.
// Implementations receive a private copy of the conversation.
type Scorer interface {
	Name() string
	Score(ctx context.Context, conv *conversation.Conversation, opts Options) (*Result, error)
}

// minimalTopics caps keyTopics when the caller did not ask for topics.
const minimalTopics = 3

// Engine enforces the result contract around a Scorer.
type Engine struct {
	scorer Scorer
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(scorer Scorer, logger *slog.Logger) *Engine {
	return &Engine{scorer: scorer, logger: logger, now: time.Now}
}

// ScorerName reports which scorer backs the engine.
func (e *Engine) ScorerName() string { return e.scorer.Name() }

// Analyze scores conv. It returns a complete Result or an error matching
// ErrAnalysisFailed, never a partial result. conv is not modified.
func (e *Engine) Analyze(ctx context.Context, conv *conversation.Conversation, opts Options) (*Result, error) {
	if conv == nil || len(conv.Messages) == 0 {
		return nil, failed("conversation has no messages", nil)
	}

	e.logger.Info("analysis started",
		"conversation_id", conv.ID,
		"messages", len(conv.Messages),
		"scorer", e.scorer.Name(),
	)
	start := e.now()

	res, err := e.scorer.Score(ctx, conv.Clone(), opts)
	if err != nil {
		e.logger.Error("scoring failed", "conversation_id", conv.ID, "error", err)
		return nil, failed("scoring step error", err)
	}
	if res == nil {
		return nil, failed("scorer returned no result", nil)
	}

	shape(res, opts)
	if err := Validate(res); err != nil {
		e.logger.Error("scorer result rejected", "conversation_id", conv.ID, "error", err)
		return nil, err
	}

	res.ConversationID = conv.ID
	res.GeneratedAt = e.now().UTC()
	res.Scorer = e.scorer.Name()

	e.logger.Info("analysis complete",
		"conversation_id", conv.ID,
		"quality", res.ConversationQuality,
		"satisfaction", res.UserSatisfactionScore,
		"effectiveness", res.ResponseEffectiveness,
		"duration_ms", e.now().Sub(start).Milliseconds(),
	)
	return res, nil
}

// Validate checks the always-present fields and score ranges.
func Validate(r *Result) error {
	var missing []string
	if strings.TrimSpace(r.Summary) == "" {
		missing = append(missing, "summary")
	}
	if strings.TrimSpace(r.OverallSentiment) == "" {
		missing = append(missing, "overallSentiment")
	}
	if strings.TrimSpace(string(r.ConversationQuality)) == "" {
		missing = append(missing, "conversationQuality")
	}
	if r.KeyTopics == nil {
		missing = append(missing, "keyTopics")
	}
	if r.SuggestedImprovements == nil {
		missing = append(missing, "suggestedImprovements")
	}
	if len(missing) > 0 {
		return failed("missing required fields: "+strings.Join(missing, ", "), nil)
	}
	if !inRange(r.UserSatisfactionScore) {
		return failed(fmt.Sprintf("userSatisfactionScore %d out of range", r.UserSatisfactionScore), nil)
	}
	if !inRange(r.ResponseEffectiveness) {
		return failed(fmt.Sprintf("responseEffectiveness %d out of range", r.ResponseEffectiveness), nil)
	}
	return nil
}

// shape applies the invocation options and set semantics to a raw result.
func shape(r *Result, opts Options) {
	r.KeyTopics = dedupeStrings(r.KeyTopics)
	if !opts.IncludeTopics && len(r.KeyTopics) > minimalTopics {
		r.KeyTopics = r.KeyTopics[:minimalTopics]
	}
	if !opts.IncludeSuggestions {
		r.SuggestedPrompts = nil
	}
	if !opts.DetailedAnalysis {
		r.BotResponseAnalysis = nil
	}
	if b := r.BotResponseAnalysis; b != nil {
		dedupeAnnotationIDs(b.Strengths)
		dedupeAnnotationIDs(b.Weaknesses)
		dedupeAnnotationIDs(b.ImprovementTips)
	}
}

// dedupeStrings keeps the first occurrence of each value. nil stays nil.
func dedupeStrings(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func dedupeAnnotationIDs(anns []Annotation) {
	for i := range anns {
		ids := anns[i].MessageIDs
		if len(ids) < 2 {
			continue
		}
		seen := make(map[int]struct{}, len(ids))
		out := ids[:0]
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		anns[i].MessageIDs = out
	}
}
