package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/convoscope/internal/analysis"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDigest() Digest {
	return Digest{
		ConversationID: "conv-001",
		Title:          "Resetting a forgotten account password",
		Revision:       2,
		DanglingCount:  1,
		Result: &analysis.Result{
			Summary:               "User got back in after a second link.",
			UserSatisfactionScore: 88,
			ResponseEffectiveness: 79,
			OverallSentiment:      "positive",
			ConversationQuality:   analysis.QualityGood,
			KeyTopics:             []string{"password reset", "spam"},
			SuggestedImprovements: []string{"Mention link expiry up front"},
			Scorer:                "llm",
			BotResponseAnalysis: &analysis.BotResponseAnalysis{
				Weaknesses:      []analysis.Annotation{{Text: "Did not mention expiry", MessageIDs: []int{3, 5}}},
				ImprovementTips: []analysis.Annotation{{Text: "State the limit"}},
			},
		},
	}
}

func TestFormatDigest(t *testing.T) {
	msg := formatDigest(testDigest())

	checks := []string{
		":white_check_mark:",
		"Resetting a forgotten account password",
		"Satisfaction: 88",
		"Effectiveness: 79",
		"Sentiment: positive",
		"*Topics:* password reset, spam",
		"1. Mention link expiry up front",
		"1 cited message(s) not found",
	}
	for _, check := range checks {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q\n%s", check, msg)
		}
	}
}

func TestFormatDigest_UnknownQuality(t *testing.T) {
	d := testDigest()
	d.Result.ConversationQuality = "Mediocre"
	d.DanglingCount = 0
	msg := formatDigest(d)
	if !strings.Contains(msg, ":grey_question:") || !strings.Contains(msg, "(Mediocre)") {
		t.Errorf("expected unknown quality carried through, got %q", msg)
	}
	if strings.Contains(msg, "not found") {
		t.Error("did not expect dangling note")
	}
}

func TestFormatFindings(t *testing.T) {
	got := formatFindings(testDigest().Result)
	want := []string{
		":warning: Did not mention expiry (#3, #5)",
		":bulb: State the limit",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d findings, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("finding %d = %q, want %q", i, got[i], want[i])
		}
	}
	if formatFindings(&analysis.Result{}) != nil {
		t.Error("expected no findings without detail")
	}
}

func TestPostAnalysisDigest_Success(t *testing.T) {
	var mu sync.Mutex
	var payloads []map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)
		mu.Lock()
		payloads = append(payloads, payload)
		mu.Unlock()

		if payload["channel"] != "C123" {
			t.Errorf("expected channel C123, got %v", payload["channel"])
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"ts": "1234567890.123456",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	ts, err := p.PostAnalysisDigest(context.Background(), testDigest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1234567890.123456" {
		t.Errorf("expected ts 1234567890.123456, got %q", ts)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 3 {
		t.Fatalf("expected header plus 2 thread replies, got %d posts", len(payloads))
	}
	for _, p := range payloads[1:] {
		if p["thread_ts"] != "1234567890.123456" {
			t.Errorf("expected thread reply, got %v", p)
		}
	}
}

func TestPostAnalysisDigest_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":    false,
			"error": "channel_not_found",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	_, err := p.PostAnalysisDigest(context.Background(), testDigest())
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected channel_not_found error, got %v", err)
	}
}
