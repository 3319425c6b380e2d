package hermes

import (
	"time"

	"github.com/google/uuid"
)

// Subjects published and consumed by convoscope.
const (
	SubjectConversationImported = "convoscope.conversation.imported"
	SubjectAnalysisCompleted    = "convoscope.analysis.completed"
	SubjectAnalysisFailed       = "convoscope.analysis.failed"
	// SubjectConversationSubmit carries a raw conversation document to import.
	SubjectConversationSubmit = "convoscope.conversation.submit"
	// SubjectAll matches every convoscope subject.
	SubjectAll = "convoscope.>"
)

// Event is the envelope for every published payload.
type Event struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh id.
func NewEvent(subject string, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ConversationImported is emitted after a conversation replaces the current one.
type ConversationImported struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	Messages       int    `json:"messages"`
	Revision       uint64 `json:"revision"`
	Source         string `json:"source"`
}

// AnalysisCompleted is emitted when an analysis is accepted as current.
type AnalysisCompleted struct {
	RunID                 string `json:"run_id"`
	ConversationID        string `json:"conversation_id"`
	Revision              uint64 `json:"revision"`
	Scorer                string `json:"scorer"`
	Quality               string `json:"quality"`
	UserSatisfactionScore int    `json:"user_satisfaction_score"`
	ResponseEffectiveness int    `json:"response_effectiveness"`
	DanglingReferences    int    `json:"dangling_references"`
}

// AnalysisFailed is emitted when scoring fails.
type AnalysisFailed struct {
	RunID          string `json:"run_id"`
	ConversationID string `json:"conversation_id"`
	Revision       uint64 `json:"revision"`
	Reason         string `json:"reason"`
}
