package conversation

import "encoding/json"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is the lifecycle state of a recorded conversation.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// Satisfaction is the user's recorded satisfaction with the conversation.
type Satisfaction string

const (
	SatisfactionPositive Satisfaction = "positive"
	SatisfactionNeutral  Satisfaction = "neutral"
	SatisfactionNegative Satisfaction = "negative"
)

// Conversation is one recorded exchange plus its metadata.
type Conversation struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Date             string       `json:"date,omitempty"`
	Duration         string       `json:"duration,omitempty"`
	Status           Status       `json:"status,omitempty"`
	UserSatisfaction Satisfaction `json:"userSatisfaction,omitempty"`
	Messages         []Message    `json:"messages"`
}

// Message is a single turn. ID is the only key used for cross-referencing.
type Message struct {
	ID             int      `json:"id"`
	Role           Role     `json:"role"`
	Content        string   `json:"content"`
	Timestamp      string   `json:"timestamp,omitempty"`
	Intent         string   `json:"intent,omitempty"`
	Sentiment      string   `json:"sentiment,omitempty"`
	StarterPrompts []string `json:"starterPrompts,omitempty"`
}

// IsAssistant reports whether the message was authored by the assistant.
func (m Message) IsAssistant() bool { return m.Role == RoleAssistant }

// IsUser reports whether the message was authored by the user.
func (m Message) IsUser() bool { return m.Role == RoleUser }

// MarshalJSON writes starterPrompts whenever the slice is non-nil, so an
// explicitly empty list survives export and is not re-synthesized on import.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	var prompts *[]string
	if m.StarterPrompts != nil {
		prompts = &m.StarterPrompts
	}
	return json.Marshal(struct {
		plain
		StarterPrompts *[]string `json:"starterPrompts,omitempty"`
	}{plain: plain(m), StarterPrompts: prompts})
}

// Clone returns a deep copy so callers can hand the conversation to code
// that must not be able to mutate the stored one.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		if m.StarterPrompts != nil {
			prompts := make([]string, len(m.StarterPrompts))
			copy(prompts, m.StarterPrompts)
			m.StarterPrompts = prompts
		}
		out.Messages[i] = m
	}
	return &out
}

// MessageByID does a linear scan for the message with the given id.
// Hot paths should use an xref.Index instead.
func (c *Conversation) MessageByID(id int) (Message, bool) {
	for _, m := range c.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// CountByRole returns the number of user and assistant turns.
func (c *Conversation) CountByRole() (user, assistant int) {
	for _, m := range c.Messages {
		switch m.Role {
		case RoleUser:
			user++
		case RoleAssistant:
			assistant++
		}
	}
	return user, assistant
}
