package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
)

const (
	// maxTranscriptChars bounds the text sent to the model (~25k tokens).
	maxTranscriptChars = 100000
	// maxMessageChars bounds any single turn.
	maxMessageChars = 3000
)

// FormatTranscript renders messages as "[#id] Human: ..." lines. The #id tag
// is what the model cites back in messageIds.
func FormatTranscript(conv *conversation.Conversation) (string, bool) {
	var sb strings.Builder
	truncated := false

	for _, msg := range conv.Messages {
		var line strings.Builder
		fmt.Fprintf(&line, "[#%d] ", msg.ID)
		switch msg.Role {
		case conversation.RoleUser:
			line.WriteString("Human: ")
		case conversation.RoleAssistant:
			line.WriteString("Assistant: ")
		default:
			line.WriteString(string(msg.Role) + ": ")
		}

		text := msg.Content
		if len(text) > maxMessageChars {
			text = truncateUTF8(text, maxMessageChars) + "... [truncated]"
			truncated = true
		}
		line.WriteString(text)
		line.WriteString("\n\n")

		if sb.Len()+line.Len() > maxTranscriptChars {
			sb.WriteString("[Transcript truncated due to length]\n")
			return sb.String(), true
		}
		sb.WriteString(line.String())
	}
	return sb.String(), truncated
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
