package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/convoscope/internal/anthropic"
	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
)

const llmMaxTokens = 4096

// Completer is the slice of the Anthropic client the LLM scorer needs.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
}

// LLMScorer asks a language model to grade the conversation.
type LLMScorer struct {
	llm    Completer
	logger *slog.Logger
}

func NewLLMScorer(llm Completer, logger *slog.Logger) *LLMScorer {
	return &LLMScorer{llm: llm, logger: logger}
}

func (s *LLMScorer) Name() string { return "llm" }

// llmResponse mirrors Result with pointer scores so a missing score is
// distinguishable from zero.
type llmResponse struct {
	Summary               string               `json:"summary"`
	UserSatisfactionScore *float64             `json:"userSatisfactionScore"`
	ResponseEffectiveness *float64             `json:"responseEffectiveness"`
	OverallSentiment      string               `json:"overallSentiment"`
	ConversationQuality   string               `json:"conversationQuality"`
	KeyTopics             []string             `json:"keyTopics"`
	SuggestedImprovements []string             `json:"suggestedImprovements"`
	SuggestedPrompts      []string             `json:"suggestedPrompts"`
	BotResponseAnalysis   *BotResponseAnalysis `json:"botResponseAnalysis"`
}

func (s *LLMScorer) Score(ctx context.Context, conv *conversation.Conversation, opts Options) (*Result, error) {
	transcript, truncated := FormatTranscript(conv)
	prompt := fmt.Sprintf(analysisUserPrompt,
		conv.Title,
		statusOrUnknown(conv.Status),
		transcript,
		flag(opts.IncludeTopics),
		flag(opts.IncludeSuggestions),
		flag(opts.DetailedAnalysis),
	)

	s.logger.Info("scoring transcript",
		"conversation_id", conv.ID,
		"transcript_len", len(transcript),
		"truncated", truncated,
	)

	raw, err := s.llm.Complete(ctx, systemPrompt, []anthropic.Message{
		{Role: "user", Content: prompt},
	}, llmMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("llm scoring: %w", err)
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		s.logger.Error("failed to parse scoring response", "error", err, "raw", raw)
		return nil, fmt.Errorf("parse scoring: %w", err)
	}
	return resp.toResult()
}

func (r *llmResponse) toResult() (*Result, error) {
	if r.UserSatisfactionScore == nil {
		return nil, fmt.Errorf("response has no userSatisfactionScore")
	}
	if r.ResponseEffectiveness == nil {
		return nil, fmt.Errorf("response has no responseEffectiveness")
	}
	sat, eff := *r.UserSatisfactionScore, *r.ResponseEffectiveness
	if sat < minScore || sat > maxScore || eff < minScore || eff > maxScore {
		return nil, fmt.Errorf("scores out of range: satisfaction=%v effectiveness=%v", sat, eff)
	}

	res := &Result{
		Summary:               strings.TrimSpace(r.Summary),
		UserSatisfactionScore: clampScore(sat),
		ResponseEffectiveness: clampScore(eff),
		OverallSentiment:      strings.TrimSpace(r.OverallSentiment),
		ConversationQuality:   Quality(strings.TrimSpace(r.ConversationQuality)),
		KeyTopics:             r.KeyTopics,
		SuggestedImprovements: r.SuggestedImprovements,
		SuggestedPrompts:      r.SuggestedPrompts,
		BotResponseAnalysis:   r.BotResponseAnalysis,
	}
	// Models sometimes return null for an empty list.
	if res.KeyTopics == nil {
		res.KeyTopics = []string{}
	}
	if res.SuggestedImprovements == nil {
		res.SuggestedImprovements = []string{}
	}
	if res.ConversationQuality == "" {
		res.ConversationQuality = QualityFor(res.UserSatisfactionScore, res.ResponseEffectiveness)
	}
	return res, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func flag(on bool) string {
	if on {
		return "include"
	}
	return "skip"
}

func statusOrUnknown(s conversation.Status) string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}
