package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port              int
	LogLevel          string
	LogJSON           bool
	DatabaseURL       string
	NatsURL           string
	NatsToken         string
	AnthropicAPIKey   string
	AnthropicModel    string
	APITokens         map[string]string
	HighlightDuration time.Duration
	InboxDir          string
	InboxDebounce     time.Duration
	PromptsFile       string
	RetentionDays     int
	PruneSchedule     string
	SlackBotToken     string
	SlackChannel      string
}

func Load() Config {
	return Config{
		Port:              envInt("CONVOSCOPE_PORT", 8760),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		LogJSON:           envBool("LOG_JSON", true),
		DatabaseURL:       envStr("DATABASE_URL", ""),
		NatsURL:           envStr("NATS_URL", ""),
		NatsToken:         envStr("NATS_TOKEN", ""),
		AnthropicAPIKey:   envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:    envStr("CONVOSCOPE_MODEL", "claude-sonnet-4-20250514"),
		APITokens:         parseTokens(envStr("CONVOSCOPE_API_TOKENS", "")),
		HighlightDuration: envDuration("CONVOSCOPE_HIGHLIGHT_DURATION", 3*time.Second),
		InboxDir:          envStr("CONVOSCOPE_INBOX_DIR", ""),
		InboxDebounce:     envDuration("CONVOSCOPE_INBOX_DEBOUNCE", 250*time.Millisecond),
		PromptsFile:       envStr("CONVOSCOPE_PROMPTS_FILE", ""),
		RetentionDays:     envInt("CONVOSCOPE_RETENTION_DAYS", 30),
		PruneSchedule:     envStr("CONVOSCOPE_PRUNE_SCHEDULE", "@daily"),
		SlackBotToken:     envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:      envStr("SLACK_ANALYSIS_CHANNEL", ""),
	}
}

// parseTokens reads "token:role,token:role". A token without a role is a viewer.
func parseTokens(raw string) map[string]string {
	tokens := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		token, role, found := strings.Cut(part, ":")
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		role = strings.ToLower(strings.TrimSpace(role))
		if !found || role == "" {
			role = "viewer"
		}
		tokens[token] = role
	}
	return tokens
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
