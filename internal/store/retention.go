package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes records older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler prunes stored analyses on a cron schedule.
type Scheduler struct {
	pruner    Pruner
	retention time.Duration
	schedule  string
	onPrune   func(n int64)
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler keeps retentionDays of history. onPrune may be nil.
func NewScheduler(p Pruner, retentionDays int, schedule string, onPrune func(int64), logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pruner:    p,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  schedule,
		onPrune:   onPrune,
		logger:    logger,
		now:       time.Now,
		cron:      cron.New(),
	}
}

// Start validates the schedule and begins pruning. An empty schedule or a
// non-positive retention disables the scheduler. It stops when ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.retention <= 0 {
		s.logger.Info("retention disabled", "schedule", s.schedule, "retention", s.retention)
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("retention scheduler started", "schedule", s.schedule, "retention", s.retention)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce prunes immediately and returns the number of deleted runs.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.pruner.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention prune failed", "error", err)
		return 0, err
	}
	if s.onPrune != nil {
		s.onPrune(n)
	}
	if n > 0 {
		s.logger.Info("retention prune completed", "deleted", n, "cutoff", cutoff)
	}
	return n, nil
}

// Stop halts the schedule and waits for a running prune.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("retention scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun reports when the next prune fires, if scheduled.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Next, true
}
