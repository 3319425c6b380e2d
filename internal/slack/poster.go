package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/convoscope/internal/analysis"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// Digest is what gets posted for one accepted analysis.
type Digest struct {
	ConversationID string
	Title          string
	Revision       uint64
	Result         *analysis.Result
	DanglingCount  int
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error,omitempty"`
}

// PostAnalysisDigest posts the headline scores and, as thread replies, the
// weaknesses and tips. Returns the header message ts.
func (p *Poster) PostAnalysisDigest(ctx context.Context, d Digest) (string, error) {
	text := formatDigest(d)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("conversation `%s` rev %d | scorer %s", d.ConversationID, d.Revision, d.Result.Scorer),
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted analysis digest to slack", "ts", ts, "conversation_id", d.ConversationID)

	for _, reply := range formatFindings(d.Result) {
		if err := p.PostThread(ctx, ts, reply); err != nil {
			p.logger.Warn("failed to post digest thread reply", "ts", ts, "error", err)
		}
	}
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp slackResponse
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

var qualityEmoji = map[analysis.Quality]string{
	analysis.QualityExcellent: ":star2:",
	analysis.QualityGood:      ":white_check_mark:",
	analysis.QualityAverage:   ":large_yellow_circle:",
	analysis.QualityPoor:      ":red_circle:",
}

func formatDigest(d Digest) string {
	r := d.Result
	var sb strings.Builder

	emoji := qualityEmoji[r.ConversationQuality]
	if emoji == "" {
		emoji = ":grey_question:"
	}
	fmt.Fprintf(&sb, "%s *%s* (%s)\n", emoji, d.Title, r.ConversationQuality)
	fmt.Fprintf(&sb, "Satisfaction: %d | Effectiveness: %d | Sentiment: %s\n", r.UserSatisfactionScore, r.ResponseEffectiveness, r.OverallSentiment)
	fmt.Fprintf(&sb, "%s\n", r.Summary)

	if len(r.KeyTopics) > 0 {
		fmt.Fprintf(&sb, "*Topics:* %s\n", strings.Join(r.KeyTopics, ", "))
	}
	if len(r.SuggestedImprovements) > 0 {
		sb.WriteString("*Improvements:*\n")
		for i, s := range r.SuggestedImprovements {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
		}
	}
	if d.DanglingCount > 0 {
		fmt.Fprintf(&sb, "_%d cited message(s) not found in the conversation._", d.DanglingCount)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatFindings renders one thread reply per weakness and tip.
func formatFindings(r *analysis.Result) []string {
	if r.BotResponseAnalysis == nil {
		return nil
	}
	var out []string
	for _, a := range r.BotResponseAnalysis.Weaknesses {
		out = append(out, ":warning: "+a.Text+citeIDs(a.MessageIDs))
	}
	for _, a := range r.BotResponseAnalysis.ImprovementTips {
		out = append(out, ":bulb: "+a.Text+citeIDs(a.MessageIDs))
	}
	return out
}

func citeIDs(ids []int) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
