// Package scheduler runs the periodic corpus refresh on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/54b3r/pressqa-go/internal/logging"
)

// Task is one scheduled run. ctx is cancelled when the scheduler stops.
type Task func(ctx context.Context) error

// Scheduler runs a single Task on a cron schedule. A run that is still in
// progress when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	// cron drives the ticks.
	cron *cron.Cron
	// location is the timezone schedules are evaluated in.
	location *time.Location
	// log receives run outcomes.
	log *slog.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	expr    string

	// running guards against overlapping runs.
	running atomic.Bool
	// ctx is cancelled by Stop so in-flight tasks can abort.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler evaluating schedules in timezone ("" means UTC).
func New(timezone string, log *slog.Logger) (*Scheduler, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load timezone %q: %w", timezone, err)
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(logging.WithLogger(context.Background(), log))
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		location: loc,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Schedule registers task under a standard five-field cron expression or a
// descriptor such as "@daily". A previous schedule is replaced.
func (s *Scheduler) Schedule(expr string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(expr, func() { s.run(task) })
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", expr, err)
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	s.entryID = id
	s.expr = expr
	s.log.Info("refresh scheduled", slog.String("schedule", expr), slog.String("timezone", s.location.String()))
	return nil
}

// Next returns the next scheduled run, or the zero time when nothing is
// scheduled or the scheduler is not started.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Start begins firing scheduled runs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler, cancels any in-flight run, and waits for it to
// return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// run executes task unless a previous run is still going.
func (s *Scheduler) run(task Task) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("refresh skipped, previous run still in progress")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	if err := task(s.ctx); err != nil {
		s.log.Error("refresh failed", slog.String("error", err.Error()), slog.Duration("duration", time.Since(start)))
		return
	}
	s.log.Info("refresh complete", slog.Duration("duration", time.Since(start)))
}
