package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
)

// Importer validates external conversation documents and fills in the
// derived fields downstream code relies on.
type Importer struct {
	prompts PromptPolicy
	logger  *slog.Logger
}

func New(prompts PromptPolicy, logger *slog.Logger) *Importer {
	return &Importer{prompts: prompts, logger: logger}
}

// Import runs the default importer.
func Import(data []byte) (*conversation.Conversation, error) {
	return New(DefaultPrompts(), slog.Default()).Import(data)
}

// wireMessage mirrors conversation.Message. Only id is checked; the other
// fields are taken as given.
type wireMessage struct {
	ID        json.Number `json:"id"`
	Role      looseString `json:"role"`
	Content   looseString `json:"content"`
	Timestamp looseString `json:"timestamp"`
	Intent    looseString `json:"intent"`
	Sentiment looseString `json:"sentiment"`
}

type wireMeta struct {
	Date             looseString `json:"date"`
	Duration         looseString `json:"duration"`
	Status           looseString `json:"status"`
	UserSatisfaction looseString `json:"userSatisfaction"`
}

// looseString accepts any JSON value for an optional text field. Strings are
// kept, numbers and booleans keep their literal text, and null, objects and
// arrays become empty.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, b[0] == 'n', b[0] == '{', b[0] == '[':
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		*s = looseString(b)
	}
	return nil
}

// Import parses data into a Conversation. Every failure matches
// ErrInvalidFormat; a *FormatError carries the human-readable reason.
func (im *Importer) Import(data []byte) (*conversation.Conversation, error) {
	if !json.Valid(data) {
		var probe any
		err := json.Unmarshal(data, &probe)
		return nil, notJSON(err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, wrongShape("document must be a JSON object", err)
	}

	id, err := parseID(top["id"])
	if err != nil {
		return nil, err
	}

	var title string
	if raw, ok := top["title"]; !ok || !isKind(raw, '"') {
		return nil, wrongShape("title must be a string", nil)
	} else if err := json.Unmarshal(raw, &title); err != nil {
		return nil, wrongShape("title must be a string", err)
	}

	rawMessages, ok := top["messages"]
	if !ok || !isKind(rawMessages, '[') {
		return nil, wrongShape("messages must be an array", nil)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(rawMessages, &elems); err != nil {
		return nil, wrongShape("messages must be an array", err)
	}

	var meta wireMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, wrongShape("document must be a JSON object", err)
	}

	conv := &conversation.Conversation{
		ID:               id,
		Title:            title,
		Date:             string(meta.Date),
		Duration:         string(meta.Duration),
		Status:           conversation.Status(meta.Status),
		UserSatisfaction: conversation.Satisfaction(meta.UserSatisfaction),
		Messages:         make([]conversation.Message, 0, len(elems)),
	}

	hasPrompts := make([]bool, len(elems))
	seen := make(map[int]struct{}, len(elems))
	for i, raw := range elems {
		msg, present, err := decodeMessage(i, raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[msg.ID]; dup {
			return nil, wrongShape(fmt.Sprintf("duplicate message id %d", msg.ID), nil)
		}
		seen[msg.ID] = struct{}{}
		hasPrompts[i] = present
		conv.Messages = append(conv.Messages, msg)
	}

	synthesized := im.normalize(conv, hasPrompts)

	im.logger.Info("conversation imported",
		"conversation_id", conv.ID,
		"messages", len(conv.Messages),
		"synthesized_prompts", synthesized,
	)
	return conv, nil
}

// Normalize fills starter prompts on assistant turns whose StarterPrompts is
// nil. It is used for conversations built from other formats.
func (im *Importer) Normalize(conv *conversation.Conversation) int {
	hasPrompts := make([]bool, len(conv.Messages))
	for i, m := range conv.Messages {
		hasPrompts[i] = m.StarterPrompts != nil
	}
	return im.normalize(conv, hasPrompts)
}

// normalize assigns the introductory set to the first assistant-role element
// and the continuation set to later ones. Position among assistant elements
// decides, never a stored flag.
func (im *Importer) normalize(conv *conversation.Conversation, hasPrompts []bool) int {
	synthesized := 0
	assistantIdx := 0
	for i := range conv.Messages {
		m := &conv.Messages[i]
		if !m.IsAssistant() {
			continue
		}
		if !hasPrompts[i] {
			m.StarterPrompts = im.prompts.forTurn(assistantIdx)
			synthesized++
		}
		assistantIdx++
	}
	return synthesized
}

func decodeMessage(i int, raw json.RawMessage) (conversation.Message, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return conversation.Message{}, false, wrongShape(fmt.Sprintf("messages[%d] must be an object", i), err)
	}

	rawID, ok := fields["id"]
	if !ok || !isNumber(rawID) {
		return conversation.Message{}, false, wrongShape(fmt.Sprintf("messages[%d].id must be an integer", i), nil)
	}

	var w wireMessage
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return conversation.Message{}, false, wrongShape(fmt.Sprintf("messages[%d] has a field of the wrong type", i), err)
	}

	id, err := w.ID.Int64()
	if err != nil {
		return conversation.Message{}, false, wrongShape(fmt.Sprintf("messages[%d].id must be an integer", i), err)
	}

	msg := conversation.Message{
		ID:        int(id),
		Role:      conversation.Role(w.Role),
		Content:   string(w.Content),
		Timestamp: string(w.Timestamp),
		Intent:    string(w.Intent),
		Sentiment: string(w.Sentiment),
	}

	// Anything other than an array counts as absent and gets defaults.
	rawPrompts, present := fields["starterPrompts"]
	present = present && isKind(rawPrompts, '[')
	if present {
		var prompts []looseString
		if err := json.Unmarshal(rawPrompts, &prompts); err != nil {
			return conversation.Message{}, false, wrongShape(fmt.Sprintf("messages[%d].starterPrompts is malformed", i), err)
		}
		msg.StarterPrompts = make([]string, len(prompts))
		for j, p := range prompts {
			msg.StarterPrompts[j] = string(p)
		}
	}
	return msg, present, nil
}

// parseID accepts a non-empty string or any JSON number. Numbers keep their
// literal decimal form.
func parseID(raw json.RawMessage) (string, error) {
	if raw == nil {
		return "", wrongShape("id is required", nil)
	}
	switch {
	case isKind(raw, '"'):
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", wrongShape("id must be a string or number", err)
		}
		if strings.TrimSpace(s) == "" {
			return "", wrongShape("id must not be empty", nil)
		}
		return s, nil
	case isNumber(raw):
		return string(bytes.TrimSpace(raw)), nil
	default:
		return "", wrongShape("id must be a string or number", nil)
	}
}

func isKind(raw json.RawMessage, first byte) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == first
}

func isNumber(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9'))
}
