package analysis

import "time"

// Quality is the coarse grade that drives presentation. Values outside the
// four constants are carried through untouched.
type Quality string

const (
	QualityExcellent Quality = "Excellent"
	QualityGood      Quality = "Good"
	QualityAverage   Quality = "Average"
	QualityPoor      Quality = "Poor"
)

// Options is the analysis invocation bag.
type Options struct {
	IncludeTopics      bool `json:"includeTopics"`
	IncludeSuggestions bool `json:"includeSuggestions"`
	DetailedAnalysis   bool `json:"detailedAnalysis"`
}

// DefaultOptions enables everything.
func DefaultOptions() Options {
	return Options{IncludeTopics: true, IncludeSuggestions: true, DetailedAnalysis: true}
}

// Annotation is a qualitative claim, optionally tied to message ids. Ids
// that do not exist in the conversation are tolerated downstream.
type Annotation struct {
	Text       string `json:"text"`
	MessageIDs []int  `json:"messageIds,omitempty"`
}

// BotResponseAnalysis is the detailed per-response breakdown.
type BotResponseAnalysis struct {
	FollowsACPFormat bool         `json:"followsAcpFormat"`
	Strengths        []Annotation `json:"strengths"`
	Weaknesses       []Annotation `json:"weaknesses"`
	ImprovementTips  []Annotation `json:"improvementTips"`
}

// Result is one analysis of one conversation.
type Result struct {
	Summary               string               `json:"summary"`
	UserSatisfactionScore int                  `json:"userSatisfactionScore"`
	ResponseEffectiveness int                  `json:"responseEffectiveness"`
	OverallSentiment      string               `json:"overallSentiment"`
	ConversationQuality   Quality              `json:"conversationQuality"`
	KeyTopics             []string             `json:"keyTopics"`
	SuggestedImprovements []string             `json:"suggestedImprovements"`
	SuggestedPrompts      []string             `json:"suggestedPrompts,omitempty"`
	BotResponseAnalysis   *BotResponseAnalysis `json:"botResponseAnalysis,omitempty"`

	ConversationID string    `json:"conversationId"`
	GeneratedAt    time.Time `json:"generatedAt"`
	Scorer         string    `json:"scorer"`
}

// Annotations returns every annotation in the detailed breakdown, in
// strengths, weaknesses, tips order.
func (r *Result) Annotations() []Annotation {
	if r == nil || r.BotResponseAnalysis == nil {
		return nil
	}
	b := r.BotResponseAnalysis
	out := make([]Annotation, 0, len(b.Strengths)+len(b.Weaknesses)+len(b.ImprovementTips))
	out = append(out, b.Strengths...)
	out = append(out, b.Weaknesses...)
	out = append(out, b.ImprovementTips...)
	return out
}
