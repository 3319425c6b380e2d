// Package export renders a conversation back to the portable JSON document
// accepted by the importer.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
)

// Serialize renders conv as indented JSON. Field order follows the
// Conversation struct, so output is stable for equal inputs.
func Serialize(conv *conversation.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("serialize: nil conversation")
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize conversation %s: %w", conv.ID, err)
	}
	return data, nil
}

// Write serializes conv to w.
func Write(ctx context.Context, conv *conversation.Conversation, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Serialize(conv)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

var unsafeFilename = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// Filename returns conversation-<id>-<YYYY-MM-DD>.json for the given day.
// Letters and digits in any script are kept; other runs become '_'.
func Filename(conv *conversation.Conversation, now time.Time) string {
	return fmt.Sprintf("conversation-%s-%s.json",
		unsafeFilename.ReplaceAllString(conv.ID, "_"),
		now.UTC().Format("2006-01-02"))
}
