package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/convoscope/internal/api"
	"github.com/MikeSquared-Agency/convoscope/internal/hermes"
	"github.com/MikeSquared-Agency/convoscope/internal/highlight"
	"github.com/MikeSquared-Agency/convoscope/internal/inbox"
	"github.com/MikeSquared-Agency/convoscope/internal/metrics"
	"github.com/MikeSquared-Agency/convoscope/internal/processor"
	"github.com/MikeSquared-Agency/convoscope/internal/session"
	"github.com/MikeSquared-Agency/convoscope/internal/slack"
	"github.com/MikeSquared-Agency/convoscope/internal/store"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, event bus bridge and inbox watcher",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	logger.Info("convoscope starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(nil)

	// Persistence (optional)
	var repo store.Repository
	if cfg.DatabaseURL != "" {
		r, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer r.Close()
		repo = r
		logger.Info("database connected")

		sched := store.NewScheduler(repo, cfg.RetentionDays, cfg.PruneSchedule, collector.RecordPruned, logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
		if next, ok := sched.NextRun(); ok {
			logger.Info("analysis retention scheduled", "days", cfg.RetentionDays, "next_prune", next)
		}
	} else {
		logger.Warn("DATABASE_URL not set, analyses will not be persisted")
	}

	// NATS/Hermes (optional)
	var bus *hermes.Client
	var publisher processor.Publisher
	var busStatus api.BusStatus
	if cfg.NatsURL != "" {
		c, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer c.Close()
		bus, publisher, busStatus = c, c, c
		logger.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Slack digests (optional)
	var poster *slack.Poster
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		poster = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)
		logger.Info("slack poster ready", "channel", cfg.SlackChannel)
	}

	im, err := newImporter(logger)
	if err != nil {
		return err
	}

	proc := processor.New(publisher, poster, collector, logger)
	hub := api.NewHub(logger)

	sessCfg := session.Config{
		Importer: im,
		Engine:   newEngine(logger, false),
		Notifier: proc,
		Highlight: []highlight.Option{
			highlight.WithScroller(hub),
			highlight.WithDuration(cfg.HighlightDuration),
		},
	}
	if repo != nil {
		sessCfg.Repository = repo
	}
	view := session.New(sessCfg, logger)
	defer view.Close()
	view.OnHighlight(hub.HighlightChanged)
	proc.Bind(view)

	if bus != nil {
		if err := bus.Subscribe(hermes.SubjectConversationSubmit, proc.HandleSubmit); err != nil {
			return err
		}
	}

	if cfg.InboxDir != "" {
		w, err := inbox.New(cfg.InboxDir, session.SourceInbox, view, cfg.InboxDebounce, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Watch(ctx); err != nil {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
	}

	deps := api.Deps{
		View:     view,
		Identity: api.NewIdentity(cfg.APITokens),
		Hub:      hub,
		Metrics:  collector,
		Bus:      busStatus,
	}
	if repo != nil {
		deps.History = repo
	}
	srv := api.NewServer(cfg.Port, deps, logger)
	if deps.Identity.Open() {
		logger.Warn("no API tokens configured, every request runs as admin")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("convoscope ready", "port", cfg.Port, "scorer", view.ScorerName())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	proc.Wait()
	logger.Info("convoscope stopped")
	return nil
}
