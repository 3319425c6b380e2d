package config

import (
	"reflect"
	"testing"
	"time"
)

var allKeys = []string{
	"CONVOSCOPE_PORT", "LOG_LEVEL", "LOG_JSON", "DATABASE_URL", "NATS_URL", "NATS_TOKEN",
	"ANTHROPIC_API_KEY", "CONVOSCOPE_MODEL", "CONVOSCOPE_API_TOKENS",
	"CONVOSCOPE_HIGHLIGHT_DURATION", "CONVOSCOPE_INBOX_DIR", "CONVOSCOPE_INBOX_DEBOUNCE",
	"CONVOSCOPE_PROMPTS_FILE", "CONVOSCOPE_RETENTION_DAYS", "CONVOSCOPE_PRUNE_SCHEDULE",
	"SLACK_BOT_TOKEN", "SLACK_ANALYSIS_CHANNEL",
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range allKeys {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != 8760 {
		t.Errorf("expected default port 8760, got %d", cfg.Port)
	}
	if cfg.LogLevel != "info" || !cfg.LogJSON {
		t.Errorf("expected json info logging, got %s json=%v", cfg.LogLevel, cfg.LogJSON)
	}
	if cfg.DatabaseURL != "" || cfg.NatsURL != "" {
		t.Errorf("expected persistence and bus disabled by default, got %q %q", cfg.DatabaseURL, cfg.NatsURL)
	}
	if cfg.AnthropicModel != "claude-sonnet-4-20250514" {
		t.Errorf("expected default model, got %s", cfg.AnthropicModel)
	}
	if len(cfg.APITokens) != 0 {
		t.Errorf("expected no api tokens, got %v", cfg.APITokens)
	}
	if cfg.HighlightDuration != 3*time.Second {
		t.Errorf("expected 3s highlight, got %v", cfg.HighlightDuration)
	}
	if cfg.InboxDebounce != 250*time.Millisecond {
		t.Errorf("expected 250ms debounce, got %v", cfg.InboxDebounce)
	}
	if cfg.RetentionDays != 30 || cfg.PruneSchedule != "@daily" {
		t.Errorf("unexpected retention defaults: %d %q", cfg.RetentionDays, cfg.PruneSchedule)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("CONVOSCOPE_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_JSON", "false")
	t.Setenv("DATABASE_URL", "sqlite:///tmp/convoscope.db")
	t.Setenv("NATS_URL", "nats://custom:4222")
	t.Setenv("NATS_TOKEN", "s3cr3t-token")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	t.Setenv("CONVOSCOPE_MODEL", "claude-haiku")
	t.Setenv("CONVOSCOPE_API_TOKENS", "abc:analyst,def:admin")
	t.Setenv("CONVOSCOPE_HIGHLIGHT_DURATION", "1500ms")
	t.Setenv("CONVOSCOPE_INBOX_DIR", "/var/inbox")
	t.Setenv("CONVOSCOPE_PROMPTS_FILE", "/etc/prompts.yaml")
	t.Setenv("CONVOSCOPE_RETENTION_DAYS", "7")
	t.Setenv("CONVOSCOPE_PRUNE_SCHEDULE", "0 3 * * *")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_ANALYSIS_CHANNEL", "C12345")

	cfg := Load()

	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" || cfg.LogJSON {
		t.Errorf("expected text debug logging, got %s json=%v", cfg.LogLevel, cfg.LogJSON)
	}
	if cfg.DatabaseURL != "sqlite:///tmp/convoscope.db" {
		t.Errorf("expected custom db url, got %s", cfg.DatabaseURL)
	}
	if cfg.NatsURL != "nats://custom:4222" || cfg.NatsToken != "s3cr3t-token" {
		t.Errorf("unexpected nats config: %s %s", cfg.NatsURL, cfg.NatsToken)
	}
	if cfg.AnthropicAPIKey != "sk-test-key" || cfg.AnthropicModel != "claude-haiku" {
		t.Errorf("unexpected anthropic config: %s %s", cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}
	if want := map[string]string{"abc": "analyst", "def": "admin"}; !reflect.DeepEqual(cfg.APITokens, want) {
		t.Errorf("expected tokens %v, got %v", want, cfg.APITokens)
	}
	if cfg.HighlightDuration != 1500*time.Millisecond {
		t.Errorf("expected 1.5s highlight, got %v", cfg.HighlightDuration)
	}
	if cfg.InboxDir != "/var/inbox" || cfg.PromptsFile != "/etc/prompts.yaml" {
		t.Errorf("unexpected paths: %s %s", cfg.InboxDir, cfg.PromptsFile)
	}
	if cfg.RetentionDays != 7 || cfg.PruneSchedule != "0 3 * * *" {
		t.Errorf("unexpected retention: %d %q", cfg.RetentionDays, cfg.PruneSchedule)
	}
	if cfg.SlackBotToken != "xoxb-test" || cfg.SlackChannel != "C12345" {
		t.Errorf("unexpected slack config: %s %s", cfg.SlackBotToken, cfg.SlackChannel)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CONVOSCOPE_PORT", "not-a-number")
	t.Setenv("CONVOSCOPE_HIGHLIGHT_DURATION", "three seconds")
	t.Setenv("LOG_JSON", "maybe")

	cfg := Load()

	if cfg.Port != 8760 {
		t.Errorf("expected fallback port 8760, got %d", cfg.Port)
	}
	if cfg.HighlightDuration != 3*time.Second {
		t.Errorf("expected fallback duration, got %v", cfg.HighlightDuration)
	}
	if !cfg.LogJSON {
		t.Error("expected fallback json logging")
	}
}

func TestParseTokens(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"abc:analyst", map[string]string{"abc": "analyst"}},
		{" abc : ADMIN , def ", map[string]string{"abc": "admin", "def": "viewer"}},
		{"ghi:,,:admin", map[string]string{"ghi": "viewer"}},
	}
	for _, tt := range tests {
		if got := parseTokens(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseTokens(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
