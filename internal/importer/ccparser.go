package importer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
)

// ccLine is one line of a Claude Code JSONL session file.
type ccLine struct {
	Type       string    `json:"type"`
	UUID       string    `json:"uuid"`
	ParentUUID *string   `json:"parentUuid"`
	SessionID  string    `json:"sessionId"`
	Timestamp  string    `json:"timestamp"`
	Message    ccMessage `json:"message"`

	ts time.Time
}

type ccMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type ccContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ImportCC converts a Claude Code session transcript into a normalized
// Conversation. Messages get sequential ids starting at 1. Tool traffic and
// thinking blocks are dropped. An empty id falls back to the session id
// found in the file.
func (im *Importer) ImportCC(r io.Reader, id, title string) (*conversation.Conversation, error) {
	lines, sessionID, err := readCCLines(r)
	if err != nil {
		return nil, err
	}

	var msgs []conversation.Message
	for _, line := range orderCCLines(lines) {
		text, isToolResult := extractCCText(line)
		if isToolResult || text == "" {
			continue
		}
		msgs = append(msgs, conversation.Message{
			ID:        len(msgs) + 1,
			Role:      conversation.Role(line.Type),
			Content:   text,
			Timestamp: displayTime(line.ts),
		})
	}
	if len(msgs) == 0 {
		return nil, wrongShape("transcript contains no user or assistant text", nil)
	}

	if id == "" {
		id = sessionID
	}
	if id == "" {
		return nil, wrongShape("id is required", nil)
	}
	if title == "" {
		title = firstUserLine(msgs)
	}

	conv := &conversation.Conversation{
		ID:       id,
		Title:    title,
		Status:   conversation.StatusCompleted,
		Messages: msgs,
	}
	if first, last := spanOf(lines); !first.IsZero() {
		conv.Date = first.Format("2006-01-02")
		conv.Duration = formatDuration(last.Sub(first))
	}

	synthesized := im.Normalize(conv)
	im.logger.Info("claude code transcript imported",
		"conversation_id", conv.ID,
		"messages", len(conv.Messages),
		"synthesized_prompts", synthesized,
	)
	return conv, nil
}

func readCCLines(r io.Reader) (map[string]*ccLine, string, error) {
	byUUID := make(map[string]*ccLine)
	sessionID := ""

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		var line ccLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue // malformed lines are skipped
		}
		if line.Type != "user" && line.Type != "assistant" {
			continue
		}
		if sessionID == "" {
			sessionID = line.SessionID
		}
		line.ts, _ = time.Parse(time.RFC3339Nano, line.Timestamp)
		byUUID[line.UUID] = &line
	}
	if err := scanner.Err(); err != nil {
		return nil, "", wrongShape("transcript could not be read", err)
	}
	return byUUID, sessionID, nil
}

// orderCCLines walks parentUuid chains from each root. Lines the walk never
// reaches are appended in timestamp order.
func orderCCLines(byUUID map[string]*ccLine) []*ccLine {
	var roots []*ccLine
	children := make(map[string]string)
	for _, line := range byUUID {
		if line.ParentUUID == nil || *line.ParentUUID == "" {
			roots = append(roots, line)
		} else {
			children[*line.ParentUUID] = line.UUID
		}
	}
	sortByTime(roots)

	var ordered []*ccLine
	visited := make(map[string]bool, len(byUUID))
	for _, root := range roots {
		for current := root.UUID; current != "" && !visited[current]; current = children[current] {
			if line, ok := byUUID[current]; ok {
				ordered = append(ordered, line)
				visited[current] = true
			}
		}
	}

	if len(visited) < len(byUUID) {
		var orphans []*ccLine
		for id, line := range byUUID {
			if !visited[id] {
				orphans = append(orphans, line)
			}
		}
		sortByTime(orphans)
		ordered = append(ordered, orphans...)
	}
	return ordered
}

func sortByTime(lines []*ccLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].ts.Equal(lines[j].ts) {
			return lines[i].UUID < lines[j].UUID
		}
		return lines[i].ts.Before(lines[j].ts)
	})
}

// extractCCText returns the text of a line and whether it is a tool_result
// carrier that should be skipped.
func extractCCText(line *ccLine) (string, bool) {
	if line.Message.Content == nil {
		return "", false
	}

	var plain string
	if err := json.Unmarshal(line.Message.Content, &plain); err == nil {
		return strings.TrimSpace(plain), false
	}

	var blocks []ccContentBlock
	if err := json.Unmarshal(line.Message.Content, &blocks); err != nil {
		return "", false
	}
	for _, b := range blocks {
		if b.Type == "tool_result" {
			return "", true
		}
	}

	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, "\n"), false
}

func spanOf(lines map[string]*ccLine) (first, last time.Time) {
	for _, l := range lines {
		if l.ts.IsZero() {
			continue
		}
		if first.IsZero() || l.ts.Before(first) {
			first = l.ts
		}
		if l.ts.After(last) {
			last = l.ts
		}
	}
	return first, last
}

func displayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("3:04 PM")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d / time.Minute)
	s := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%dm %02ds", m, s)
}

func firstUserLine(msgs []conversation.Message) string {
	for _, m := range msgs {
		if m.IsUser() {
			title := strings.SplitN(m.Content, "\n", 2)[0]
			if len(title) > 80 {
				title = title[:80]
			}
			return title
		}
	}
	return "Imported session"
}
