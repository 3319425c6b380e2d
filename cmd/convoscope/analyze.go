package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/convoscope/internal/analysis"
	"github.com/MikeSquared-Agency/convoscope/internal/session"
)

var analyzeFlags struct {
	topics      bool
	suggestions bool
	detailed    bool
	heuristic   bool
	timeout     time.Duration
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Score a conversation and print the linked analysis",
	Long: `Import a conversation file, analyze it and print the result as JSON.
Citations in the detailed breakdown are resolved against the conversation.

Examples:
  convoscope analyze conversation.json
  convoscope analyze session.jsonl --detailed=false --heuristic`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	def := analysis.DefaultOptions()
	analyzeCmd.Flags().BoolVar(&analyzeFlags.topics, "topics", def.IncludeTopics, "include key topics")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.suggestions, "suggestions", def.IncludeSuggestions, "include suggested prompts")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.detailed, "detailed", def.DetailedAnalysis, "include the per-response breakdown")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.heuristic, "heuristic", false, "use the heuristic scorer even when an API key is set")
	analyzeCmd.Flags().DurationVar(&analyzeFlags.timeout, "timeout", 2*time.Minute, "analysis timeout")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	im, err := newImporter(logger)
	if err != nil {
		return err
	}
	conv, err := readConversation(im, args[0])
	if err != nil {
		return err
	}

	view := session.New(session.Config{
		Importer: im,
		Engine:   newEngine(logger, analyzeFlags.heuristic),
		Initial:  conv,
	}, logger)
	defer view.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeFlags.timeout)
	defer cancel()

	run, err := view.Analyze(ctx, analysis.Options{
		IncludeTopics:      analyzeFlags.topics,
		IncludeSuggestions: analyzeFlags.suggestions,
		DetailedAnalysis:   analyzeFlags.detailed,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(run.Linked)
}
