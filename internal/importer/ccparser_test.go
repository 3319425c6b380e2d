package importer

import (
	"errors"
	"strings"
	"testing"
)

func ccReader(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n"))
}

func TestImportCC_BasicConversation(t *testing.T) {
	r := ccReader(
		`{"type":"user","uuid":"aaa","parentUuid":null,"sessionId":"s1","timestamp":"2026-02-11T10:00:00Z","message":{"role":"user","content":"Hello, deploy the service"}}`,
		`{"type":"assistant","uuid":"bbb","parentUuid":"aaa","sessionId":"s1","timestamp":"2026-02-11T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"I'll deploy the service now."}]}}`,
		`{"type":"user","uuid":"ccc","parentUuid":"bbb","sessionId":"s1","timestamp":"2026-02-11T10:02:10Z","message":{"role":"user","content":"Great, thanks"}}`,
	)

	conv, err := newTestImporter().ImportCC(r, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.ID != "s1" {
		t.Errorf("expected id from session, got %q", conv.ID)
	}
	if conv.Title != "Hello, deploy the service" {
		t.Errorf("expected title from first user line, got %q", conv.Title)
	}
	if conv.Date != "2026-02-11" || conv.Duration != "2m 10s" {
		t.Errorf("unexpected date/duration: %q %q", conv.Date, conv.Duration)
	}
	if len(conv.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv.Messages))
	}
	for i, m := range conv.Messages {
		if m.ID != i+1 {
			t.Errorf("message %d has id %d, want sequential ids", i, m.ID)
		}
	}
	if conv.Messages[1].Role != "assistant" || conv.Messages[1].Content != "I'll deploy the service now." {
		t.Errorf("unexpected assistant message: %+v", conv.Messages[1])
	}
	if len(conv.Messages[1].StarterPrompts) == 0 {
		t.Error("expected synthesized prompts on assistant turn")
	}
}

func TestImportCC_SkipsToolTraffic(t *testing.T) {
	r := ccReader(
		`{"type":"user","uuid":"aaa","parentUuid":null,"sessionId":"s1","timestamp":"2026-02-11T10:00:00Z","message":{"role":"user","content":"List files"}}`,
		`{"type":"assistant","uuid":"bbb","parentUuid":"aaa","sessionId":"s1","timestamp":"2026-02-11T10:00:01Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"ls"}}]}}`,
		`{"type":"user","uuid":"ccc","parentUuid":"bbb","sessionId":"s1","timestamp":"2026-02-11T10:00:02Z","message":{"role":"user","content":[{"tool_use_id":"toolu_1","type":"tool_result","content":"file1\nfile2","is_error":false}]}}`,
		`{"type":"assistant","uuid":"ddd","parentUuid":"ccc","sessionId":"s1","timestamp":"2026-02-11T10:00:03Z","message":{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"I found file1 and file2."}]}}`,
		`{"type":"summary","summary":"ignored"}`,
		`not json`,
	)

	conv, err := newTestImporter().ImportCC(r, "cc-1", "Files")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Content != "List files" || conv.Messages[1].Content != "I found file1 and file2." {
		t.Errorf("unexpected messages: %+v", conv.Messages)
	}
	if conv.ID != "cc-1" || conv.Title != "Files" {
		t.Errorf("explicit id/title not used: %q %q", conv.ID, conv.Title)
	}
}

func TestImportCC_OrphansAppendedByTime(t *testing.T) {
	r := ccReader(
		`{"type":"user","uuid":"aaa","parentUuid":null,"sessionId":"s1","timestamp":"2026-02-11T10:00:00Z","message":{"role":"user","content":"first"}}`,
		`{"type":"assistant","uuid":"zzz","parentUuid":"missing-2","sessionId":"s1","timestamp":"2026-02-11T10:00:09Z","message":{"role":"assistant","content":"late orphan"}}`,
		`{"type":"assistant","uuid":"yyy","parentUuid":"missing-1","sessionId":"s1","timestamp":"2026-02-11T10:00:05Z","message":{"role":"assistant","content":"early orphan"}}`,
	)

	conv, err := newTestImporter().ImportCC(r, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []string{conv.Messages[0].Content, conv.Messages[1].Content, conv.Messages[2].Content}
	want := []string{"first", "early orphan", "late orphan"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestImportCC_Empty(t *testing.T) {
	_, err := newTestImporter().ImportCC(ccReader(`{"type":"summary"}`), "x", "y")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}
