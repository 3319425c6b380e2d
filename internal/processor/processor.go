// Package processor fans view events out to the bus, Slack and metrics, and
// feeds bus submissions back into the view.
package processor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
	"github.com/MikeSquared-Agency/convoscope/internal/hermes"
	"github.com/MikeSquared-Agency/convoscope/internal/metrics"
	"github.com/MikeSquared-Agency/convoscope/internal/session"
	"github.com/MikeSquared-Agency/convoscope/internal/slack"
)

const slackTimeout = 15 * time.Second

// Publisher is the slice of the hermes client the processor needs.
type Publisher interface {
	PublishEvent(subject string, data any) error
}

// Importer receives conversation documents from the bus.
type Importer interface {
	Import(data []byte, source string) (*conversation.Conversation, error)
}

// Processor implements session.Notifier. Every dependency is optional.
type Processor struct {
	bus     Publisher
	slack   *slack.Poster
	metrics *metrics.Collector
	logger  *slog.Logger

	mu     sync.Mutex
	target Importer
	wg     sync.WaitGroup
}

func New(bus Publisher, sl *slack.Poster, m *metrics.Collector, logger *slog.Logger) *Processor {
	return &Processor{bus: bus, slack: sl, metrics: m, logger: logger}
}

// Bind sets where bus submissions are imported.
func (p *Processor) Bind(target Importer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = target
}

// HandleSubmit is the NATS handler for convoscope.conversation.submit.
func (p *Processor) HandleSubmit(subject string, data []byte) {
	p.mu.Lock()
	target := p.target
	p.mu.Unlock()
	if target == nil {
		p.logger.Warn("submission dropped, no view bound", "subject", subject)
		return
	}

	conv, err := target.Import(data, session.SourceBus)
	if err != nil {
		// Already reported through ImportRejected.
		return
	}
	p.logger.Info("conversation submitted over bus", "conversation_id", conv.ID, "messages", len(conv.Messages))
}

func (p *Processor) ConversationImported(conv *conversation.Conversation, revision uint64, source string) {
	if p.metrics != nil {
		p.metrics.RecordImport(source, "success")
	}
	p.publish(hermes.SubjectConversationImported, hermes.ConversationImported{
		ConversationID: conv.ID,
		Title:          conv.Title,
		Messages:       len(conv.Messages),
		Revision:       revision,
		Source:         source,
	})
}

func (p *Processor) ImportRejected(source string, err error) {
	if p.metrics != nil {
		p.metrics.RecordImport(source, "rejected")
	}
}

func (p *Processor) AnalysisCompleted(run session.Run) {
	res := run.Result
	if p.metrics != nil {
		p.metrics.RecordAnalysis(res.Scorer, "success", run.Duration, res.UserSatisfactionScore, res.ResponseEffectiveness)
		p.metrics.RecordDangling(run.Linked.DanglingCount)
	}
	p.publish(hermes.SubjectAnalysisCompleted, hermes.AnalysisCompleted{
		RunID:                 run.ID,
		ConversationID:        run.ConversationID,
		Revision:              run.Revision,
		Scorer:                res.Scorer,
		Quality:               string(res.ConversationQuality),
		UserSatisfactionScore: res.UserSatisfactionScore,
		ResponseEffectiveness: res.ResponseEffectiveness,
		DanglingReferences:    run.Linked.DanglingCount,
	})

	if p.slack == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), slackTimeout)
		defer cancel()
		_, err := p.slack.PostAnalysisDigest(ctx, slack.Digest{
			ConversationID: run.ConversationID,
			Title:          run.Title,
			Revision:       run.Revision,
			Result:         res,
			DanglingCount:  run.Linked.DanglingCount,
		})
		if err != nil {
			p.logger.Error("slack digest failed", "run_id", run.ID, "error", err)
		}
	}()
}

func (p *Processor) AnalysisFailed(run session.Run, err error) {
	if p.metrics != nil {
		p.metrics.RecordAnalysis(scorerLabel(run), "failed", run.Duration, 0, 0)
	}
	p.publish(hermes.SubjectAnalysisFailed, hermes.AnalysisFailed{
		RunID:          run.ID,
		ConversationID: run.ConversationID,
		Revision:       run.Revision,
		Reason:         err.Error(),
	})
}

// Wait blocks until background Slack posts finish.
func (p *Processor) Wait() {
	p.wg.Wait()
}

func (p *Processor) publish(subject string, data any) {
	if p.bus == nil {
		return
	}
	err := p.bus.PublishEvent(subject, data)
	if p.metrics != nil {
		p.metrics.RecordEvent(subject, err)
	}
	if err != nil {
		p.logger.Error("failed to publish event", "subject", subject, "error", err)
	}
}

func scorerLabel(run session.Run) string {
	if run.Scorer != "" {
		return run.Scorer
	}
	return "unknown"
}
