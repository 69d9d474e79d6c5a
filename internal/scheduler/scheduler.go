// Package scheduler runs the scrape pipeline as a single-flight background job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrScrapeInProgress is returned by TriggerScrape while a run is active.
var ErrScrapeInProgress = errors.New("scraping is already in progress")

const idlePhase = "None"

// Runner executes one full pipeline pass, reporting phase labels through
// progress.
type Runner interface {
	Run(ctx context.Context, progress func(string)) error
}

// Status is a consistent snapshot of the scheduler state.
type Status struct {
	InProgress         bool
	Phase              string
	LastScrapeHoursAgo *float64
	IntervalHours      float64
}

// Scheduler wakes on a fixed tick and starts a pipeline run when the
// configured interval has elapsed and no run is active. All state mutations
// go through one mutex; status reads take the same lock so they never
// observe a torn write.
type Scheduler struct {
	runner   Runner
	log      *slog.Logger
	tick     time.Duration
	interval time.Duration
	cooldown time.Duration

	mu         sync.Mutex
	inProgress bool
	phase      string
	lastRun    *time.Time
}

// New creates a Scheduler running the pipeline every interval. lastRun seeds
// the elapsed-time check from persisted state, so a restart does not force
// an immediate run.
func New(runner Runner, interval time.Duration, lastRun *time.Time, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		log:      log,
		tick:     10 * time.Minute,
		interval: interval,
		cooldown: 5 * time.Minute,
		phase:    idlePhase,
		lastRun:  lastRun,
	}
}

// SetTick overrides the default 10-minute wake interval.
func (s *Scheduler) SetTick(d time.Duration) {
	s.tick = d
}

// SetCooldown overrides the sleep after a loop-level failure.
func (s *Scheduler) SetCooldown(d time.Duration) {
	s.cooldown = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled. Failures
// are logged and followed by a cooldown; they never terminate the loop.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started", "interval", s.interval, "tick", s.tick)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.maybeScrape(ctx); err != nil {
				s.log.Error("scheduled scrape", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.cooldown):
				}
			}
		}
	}
}

func (s *Scheduler) maybeScrape(ctx context.Context) error {
	if !s.due() {
		return nil
	}
	if !s.begin() {
		return nil
	}
	return s.scrape(ctx)
}

// TriggerScrape starts a pipeline run asynchronously and returns
// immediately, or ErrScrapeInProgress if one is already active. The run
// outlives the triggering request.
func (s *Scheduler) TriggerScrape(ctx context.Context) error {
	if !s.begin() {
		return ErrScrapeInProgress
	}
	go func() {
		if err := s.scrape(context.WithoutCancel(ctx)); err != nil {
			s.log.Error("manual scrape", "error", err)
		}
	}()
	return nil
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		InProgress:    s.inProgress,
		Phase:         s.phase,
		IntervalHours: s.interval.Hours(),
	}
	if s.lastRun != nil {
		hours := time.Since(*s.lastRun).Hours()
		st.LastScrapeHoursAgo = &hours
	}
	return st
}

func (s *Scheduler) scrape(ctx context.Context) error {
	defer s.finish()

	s.log.Info("scrape started")
	if err := s.runner.Run(ctx, s.setPhase); err != nil {
		return fmt.Errorf("scrape run: %w", err)
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.lastRun = &now
	s.mu.Unlock()

	s.log.Info("scrape completed")
	return nil
}

func (s *Scheduler) due() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return true
	}
	return time.Since(*s.lastRun) >= s.interval
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress {
		return false
	}
	s.inProgress = true
	s.phase = "Starting"
	return true
}

func (s *Scheduler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProgress = false
	s.phase = idlePhase
}

func (s *Scheduler) setPhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}
