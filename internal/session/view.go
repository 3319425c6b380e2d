// Package session ties the conversation store, analysis engine, resolver and
// highlight controller into the single view a client interacts with.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/convoscope/internal/analysis"
	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
	"github.com/MikeSquared-Agency/convoscope/internal/export"
	"github.com/MikeSquared-Agency/convoscope/internal/highlight"
	"github.com/MikeSquared-Agency/convoscope/internal/importer"
	"github.com/MikeSquared-Agency/convoscope/internal/xref"
)

var (
	// ErrStaleAnalysis means a newer analysis request or a new conversation
	// superseded this one. Its result was discarded.
	ErrStaleAnalysis = errors.New("analysis superseded")
	// ErrNoAnalysis means no analysis is currently shown.
	ErrNoAnalysis = errors.New("no analysis available")
)

// Import sources reported to notifiers.
const (
	SourceAPI   = "api"
	SourceCC    = "cc"
	SourceBus   = "bus"
	SourceInbox = "inbox"
)

// AnalysisRepository persists accepted analyses.
type AnalysisRepository interface {
	SaveAnalysis(ctx context.Context, run Run) error
}

// Notifier is told about state changes. Implementations must not block.
type Notifier interface {
	ConversationImported(conv *conversation.Conversation, revision uint64, source string)
	ImportRejected(source string, err error)
	AnalysisCompleted(run Run)
	AnalysisFailed(run Run, err error)
}

// Run is one analysis invocation and, once complete, its outcome.
type Run struct {
	ID             string
	ConversationID string
	Title          string
	Revision       uint64
	Sequence       uint64
	Scorer         string
	Options        analysis.Options
	Result         *analysis.Result
	Linked         xref.LinkedResult
	Duration       time.Duration
}

type Config struct {
	Importer   *importer.Importer
	Engine     *analysis.Engine
	Repository AnalysisRepository
	Notifier   Notifier
	// Highlight options, such as clock, duration and scroller.
	Highlight []highlight.Option
	// Initial conversation. Defaults to conversation.Default().
	Initial *conversation.Conversation
}

// View is the single logical view. Import replaces the conversation
// wholesale; of several concurrent Analyze calls only the last one to be
// invoked may publish its result.
type View struct {
	store     *conversation.Store
	importer  *importer.Importer
	engine    *analysis.Engine
	repo      AnalysisRepository
	notifier  Notifier
	highlight *highlight.Controller
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	index    *xref.Index
	current  *Run
	seq      uint64
	inFlight int
}

func New(cfg Config, logger *slog.Logger) *View {
	initial := cfg.Initial
	if initial == nil {
		initial = conversation.Default()
	}
	imp := cfg.Importer
	if imp == nil {
		imp = importer.New(importer.DefaultPrompts(), logger)
	}

	v := &View{
		store:    conversation.NewStore(initial),
		importer: imp,
		engine:   cfg.Engine,
		repo:     cfg.Repository,
		notifier: cfg.Notifier,
		logger:   logger,
		now:      time.Now,
		index:    xref.NewIndex(initial),
	}
	v.highlight = highlight.NewController(v.index, logger, cfg.Highlight...)
	return v
}

// Conversation returns a copy of the current conversation and its revision.
func (v *View) Conversation() (*conversation.Conversation, uint64, error) {
	return v.store.Current()
}

// Import validates data and, on success, makes it the current conversation.
// On failure nothing changes and the error matches importer.ErrInvalidFormat.
func (v *View) Import(data []byte, source string) (*conversation.Conversation, error) {
	conv, err := v.importer.Import(data)
	if err != nil {
		v.rejected(source, err)
		return nil, err
	}
	v.replace(conv, source)
	return conv, nil
}

// ImportCC imports a Claude Code JSONL transcript.
func (v *View) ImportCC(r io.Reader, id, title string) (*conversation.Conversation, error) {
	conv, err := v.importer.ImportCC(r, id, title)
	if err != nil {
		v.rejected(SourceCC, err)
		return nil, err
	}
	v.replace(conv, SourceCC)
	return conv, nil
}

func (v *View) rejected(source string, err error) {
	v.logger.Warn("import rejected", "source", source, "error", err)
	if v.notifier != nil {
		v.notifier.ImportRejected(source, err)
	}
}

func (v *View) replace(conv *conversation.Conversation, source string) {
	v.mu.Lock()
	rev := v.store.Replace(conv)
	v.index = xref.NewIndex(conv)
	v.highlight.Reset(v.index)
	v.current = nil
	v.mu.Unlock()

	v.logger.Info("conversation replaced",
		"conversation_id", conv.ID,
		"revision", rev,
		"messages", len(conv.Messages),
		"source", source,
	)
	if v.notifier != nil {
		v.notifier.ConversationImported(conv, rev, source)
	}
}

// Analyze scores the current conversation. If another Analyze call or an
// Import happens before this one finishes, the result is discarded and
// ErrStaleAnalysis is returned.
func (v *View) Analyze(ctx context.Context, opts analysis.Options) (*Run, error) {
	if v.engine == nil {
		return nil, fmt.Errorf("%w: no scorer configured", analysis.ErrAnalysisFailed)
	}

	v.mu.Lock()
	conv, rev, err := v.store.Current()
	if err != nil {
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", analysis.ErrAnalysisFailed, err)
	}
	v.seq++
	run := Run{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Title:          conv.Title,
		Revision:       rev,
		Sequence:       v.seq,
		Scorer:         v.engine.ScorerName(),
		Options:        opts,
	}
	v.inFlight++
	v.mu.Unlock()

	start := v.now()
	res, err := v.engine.Analyze(ctx, conv, opts)
	run.Duration = v.now().Sub(start)

	v.mu.Lock()
	v.inFlight--
	stale := run.Sequence != v.seq || v.store.Revision() != run.Revision
	if err != nil {
		v.mu.Unlock()
		if stale {
			return nil, fmt.Errorf("%w: %v", ErrStaleAnalysis, err)
		}
		if v.notifier != nil {
			v.notifier.AnalysisFailed(run, err)
		}
		return nil, err
	}
	if stale {
		v.mu.Unlock()
		v.logger.Info("discarding superseded analysis",
			"run_id", run.ID,
			"conversation_id", run.ConversationID,
			"sequence", run.Sequence,
		)
		return nil, ErrStaleAnalysis
	}
	run.Result = res
	run.Linked = v.index.LinkResult(res)
	v.current = &run
	v.mu.Unlock()

	if run.Linked.DanglingCount > 0 {
		v.logger.Warn("analysis cites unknown messages",
			"run_id", run.ID,
			"dangling", run.Linked.DanglingCount,
		)
	}
	if v.repo != nil {
		if err := v.repo.SaveAnalysis(ctx, run); err != nil {
			v.logger.Error("failed to persist analysis", "run_id", run.ID, "error", err)
		}
	}
	if v.notifier != nil {
		v.notifier.AnalysisCompleted(run)
	}
	return &run, nil
}

// Analysis returns the analysis currently shown.
func (v *View) Analysis() (*Run, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return nil, ErrNoAnalysis
	}
	run := *v.current
	return &run, nil
}

// DismissAnalysis hides the current analysis.
func (v *View) DismissAnalysis() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return ErrNoAnalysis
	}
	v.current = nil
	return nil
}

// InFlight is the number of Analyze calls still running.
func (v *View) InFlight() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inFlight
}

// Resolve looks up a message in the current conversation.
func (v *View) Resolve(id int) (xref.Location, bool) {
	v.mu.Lock()
	idx := v.index
	v.mu.Unlock()
	return idx.Resolve(id)
}

// Activate highlights message id. Unknown ids are ignored.
func (v *View) Activate(id int) bool {
	return v.highlight.Activate(id)
}

// Highlight returns the highlight state.
func (v *View) Highlight() highlight.State {
	return v.highlight.State()
}

// OnHighlight registers a highlight state listener.
func (v *View) OnHighlight(l highlight.Listener) {
	v.highlight.OnChange(l)
}

// Export serializes the current conversation and names the file for today.
func (v *View) Export() ([]byte, string, error) {
	conv, _, err := v.store.Current()
	if err != nil {
		return nil, "", err
	}
	data, err := export.Serialize(conv)
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename(conv, v.now()), nil
}

// ScorerName reports the configured scorer, or "" when analysis is disabled.
func (v *View) ScorerName() string {
	if v.engine == nil {
		return ""
	}
	return v.engine.ScorerName()
}

// Close stops the highlight timer.
func (v *View) Close() {
	v.highlight.Close()
}
