package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miradorstack/mirador-reliability/internal/config"
	"github.com/miradorstack/mirador-reliability/internal/metrics"
	"github.com/miradorstack/mirador-reliability/internal/source"
	"github.com/miradorstack/mirador-reliability/internal/store"
	"github.com/miradorstack/mirador-reliability/internal/utils"
)

// State tracks the scheduler lifecycle. There is no transition out of
// Stopped; restarting monitoring requires a fresh Scheduler.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Options configure a Scheduler.
type Options struct {
	Monitoring    config.MonitoringConfig
	Disabled      bool // lean mode: Start becomes a terminal no-op
	IncludeTraces bool
	InitDeferrer  Deferrer
}

// Scheduler owns the polling loop: one deferred initialization, then a
// fixed-interval tick loop driving reports through the store. Ticks are
// serialized; a tick whose predecessor has not resolved is skipped.
type Scheduler struct {
	opts      Options
	src       source.ReportSource
	reports   *store.ReliabilityStore
	logger    *slog.Logger
	latencies *utils.LatencyTracker

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc

	tickBusy atomic.Bool
}

// NewScheduler constructs an idle scheduler.
func NewScheduler(opts Options, src source.ReportSource, reports *store.ReliabilityStore, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.InitDeferrer == nil {
		opts.InitDeferrer = TimerDeferrer{}
	}
	return &Scheduler{
		opts:      opts,
		src:       src,
		reports:   reports,
		logger:    logger,
		latencies: utils.NewLatencyTracker(256),
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches deferred initialization followed by the tick loop. Lean mode
// short-circuits into Stopped, which is a valid terminal state, not an error.
// Start never blocks the caller.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("scheduler already %s", state)
	}

	if s.opts.Disabled {
		s.state = StateStopped
		s.mu.Unlock()
		s.logger.Info("monitoring disabled by lean mode; scheduler will not run")
		return nil
	}

	if s.opts.Monitoring.CheckInterval <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("check interval must be positive")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateInitializing
	s.mu.Unlock()

	s.opts.InitDeferrer.Defer(func() {
		s.initialize(runCtx)
	})
	return nil
}

func (s *Scheduler) initialize(ctx context.Context) {
	// Initialization is best-effort: a failing source must never keep the
	// host from starting.
	if err := s.src.Initialize(ctx, s.opts.Monitoring); err != nil {
		s.logger.Warn("monitoring initialization failed; continuing with defaults", slog.Any("error", err))
	}

	s.mu.Lock()
	if s.state != StateInitializing {
		// Teardown raced initialization; discard the late result.
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info("monitoring started",
		slog.Duration("interval", s.opts.Monitoring.CheckInterval),
		slog.Bool("include_traces", s.opts.IncludeTraces))

	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Monitoring.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.tickBusy.CompareAndSwap(false, true) {
		metrics.ObserveTick(0, metrics.OutcomeSkipped)
		s.logger.Debug("tick skipped; previous report still in flight")
		return
	}

	go func() {
		defer s.tickBusy.Store(false)

		start := time.Now()
		err := s.reports.FetchReport(ctx, store.Options{
			Force:         true,
			IncludeTraces: s.opts.IncludeTraces,
		})
		duration := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.ObserveTick(duration, metrics.OutcomeError)
			s.logger.Warn("monitoring cycle failed; loop continues", slog.Any("error", err))
			return
		}

		metrics.ObserveTick(duration, metrics.OutcomeSuccess)
		s.latencies.Observe(duration)
		if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
			s.logger.Info("report latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
		}
	}()
}

// Stop tears the loop down: the timer is cancelled first, then the source is
// cleaned up best-effort. Idempotent; repeat calls are no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	previous := s.state
	s.state = StateStopped
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if previous == StateInitializing || previous == StateRunning {
		if err := s.src.Cleanup(); err != nil {
			s.logger.Warn("report source cleanup failed", slog.Any("error", err))
		}
	}

	s.logger.Info("monitoring stopped")
}
