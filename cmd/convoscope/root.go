package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/convoscope/internal/analysis"
	"github.com/MikeSquared-Agency/convoscope/internal/anthropic"
	"github.com/MikeSquared-Agency/convoscope/internal/config"
	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
	"github.com/MikeSquared-Agency/convoscope/internal/importer"
)

var (
	envFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "convoscope",
	Short: "Conversation analysis and cross-reference engine",
	Long: `Convoscope imports a chatbot conversation, scores it, and links every
claim in the analysis back to the messages it cites.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && envFile != ".env" {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		cfg = config.Load()
		// Only the server logs to stdout; the other commands print results there.
		out := os.Stderr
		if cmd == serveCmd {
			out = os.Stdout
		}
		setupLogging(out, cfg.LogLevel, cfg.LogJSON)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
}

func setupLogging(w io.Writer, level string, json bool) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if !json {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func newImporter(logger *slog.Logger) (*importer.Importer, error) {
	prompts := importer.DefaultPrompts()
	if cfg.PromptsFile != "" {
		p, err := importer.LoadPromptPolicy(cfg.PromptsFile)
		if err != nil {
			return nil, err
		}
		prompts = p
		logger.Info("prompt policy loaded", "path", cfg.PromptsFile)
	}
	return importer.New(prompts, logger), nil
}

// newEngine uses the Anthropic scorer when a key is configured, otherwise
// the built-in heuristic scorer.
func newEngine(logger *slog.Logger, forceHeuristic bool) *analysis.Engine {
	if cfg.AnthropicAPIKey == "" || forceHeuristic {
		logger.Info("using heuristic scorer")
		return analysis.NewEngine(analysis.NewHeuristicScorer(), logger)
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	llm.SetTemperature(0)
	logger.Info("anthropic scorer ready", "model", llm.Model())
	return analysis.NewEngine(analysis.NewLLMScorer(llm, logger), logger)
}

// readConversation imports path. *.jsonl files are read as Claude Code
// transcripts named after the file; anything else as a conversation document.
func readConversation(im *importer.Importer, path string) (*conversation.Conversation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return im.ImportCC(f, id, "")
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return im.Import(data)
}
