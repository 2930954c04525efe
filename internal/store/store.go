package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/miradorstack/mirador-reliability/internal/classifier"
	"github.com/miradorstack/mirador-reliability/internal/metrics"
	"github.com/miradorstack/mirador-reliability/internal/models"
	"github.com/miradorstack/mirador-reliability/internal/source"
	"github.com/miradorstack/mirador-reliability/internal/utils"
)

// Snapshot is the read-only view handed to consumers. Report pointers are
// treated as immutable once ingested.
type Snapshot struct {
	Report         *models.Report
	Classification classifier.Classification
	Loading        bool
	Error          string
	LastFetched    time.Time
}

// Subscriber receives a snapshot after every successful ingest.
type Subscriber func(Snapshot)

// Options modify a single FetchReport call.
type Options struct {
	Force         bool
	IncludeTraces bool
}

// ReliabilityStore owns the latest report and its fetch state. It is created
// once per process, injected into consumers, and is the only component allowed
// to mutate the snapshot fields.
type ReliabilityStore struct {
	src       source.ReportSource
	freshness time.Duration
	logger    *slog.Logger

	mu             sync.Mutex
	report         *models.Report
	classification classifier.Classification
	loading        bool
	err            string
	lastFetched    time.Time
	inFlight       bool
	subscribers    []Subscriber
}

// New constructs a store polling the given source. Freshness bounds how long a
// non-forced fetch reuses the cached report; zero or negative disables reuse.
func New(src source.ReportSource, freshness time.Duration, logger *slog.Logger) *ReliabilityStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReliabilityStore{
		src:       src,
		freshness: freshness,
		logger:    logger,
	}
}

// Subscribe registers a callback invoked after each successful ingest.
// Callbacks run outside the store lock, on the fetching goroutine.
func (s *ReliabilityStore) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// FetchReport retrieves a fresh report through the source and ingests it.
//
// Non-forced calls are no-ops while a fetch is in flight or while the last
// successful fetch is inside the freshness window. A failed fetch records the
// error and clears loading but never touches the previous report. A successful
// fetch replaces report, classification and lastFetched in one mutation and
// clears any stale error.
func (s *ReliabilityStore) FetchReport(ctx context.Context, opts Options) error {
	s.mu.Lock()
	if !opts.Force {
		if s.inFlight {
			s.mu.Unlock()
			return nil
		}
		if s.report != nil && s.freshness > 0 && time.Since(s.lastFetched) < s.freshness {
			s.mu.Unlock()
			return nil
		}
	}
	s.inFlight = true
	s.loading = true
	s.mu.Unlock()

	start := time.Now()
	report, err := s.generate(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			// Session is tearing down; drop the mutation instead of
			// recording a shutdown artifact as a fetch error.
			s.mu.Lock()
			s.loading = false
			s.inFlight = false
			s.mu.Unlock()
			return err
		}

		s.mu.Lock()
		s.loading = false
		s.inFlight = false
		s.err = err.Error()
		s.mu.Unlock()

		metrics.ObserveFetch(metrics.OutcomeError)
		s.logger.Warn("report fetch failed", slog.Any("error", err))
		return err
	}

	if report == nil {
		// Nothing to report this tick; cached state stays as-is.
		s.mu.Lock()
		s.loading = false
		s.inFlight = false
		s.mu.Unlock()

		metrics.ObserveFetch(metrics.OutcomeEmpty)
		return nil
	}

	classification := classifier.Classify(report)

	s.mu.Lock()
	s.report = report
	s.classification = classification
	s.lastFetched = time.Now()
	s.err = ""
	s.loading = false
	s.inFlight = false
	snapshot := s.snapshotLocked()
	subscribers := append([]Subscriber(nil), s.subscribers...)
	s.mu.Unlock()

	metrics.ObserveFetch(metrics.OutcomeSuccess)
	metrics.SetAnomalyCounts(len(classification.Critical), len(classification.Warning), len(classification.Info))
	s.logger.Debug("report ingested",
		slog.String("status", string(classification.Status)),
		slog.Int("anomalies", classification.AnomalyCount()),
		slog.Float64("fetch_ms", utils.DurationMillis(start, time.Now())))

	for _, fn := range subscribers {
		fn(snapshot)
	}
	return nil
}

func (s *ReliabilityStore) generate(ctx context.Context, opts Options) (*models.Report, error) {
	if opts.IncludeTraces {
		if traced, ok := s.src.(source.TraceCapableSource); ok {
			return traced.GenerateReportWithOptions(ctx, source.GenerateOptions{IncludeTraces: true})
		}
	}
	return s.src.GenerateReport(ctx)
}

// ClearError resets the error without touching the report. Idempotent.
func (s *ReliabilityStore) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = ""
}

// Reset restores the initial empty state. Intended for session teardown and
// test isolation; never called automatically on a fetch failure.
func (s *ReliabilityStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = nil
	s.classification = classifier.Classification{}
	s.loading = false
	s.err = ""
	s.lastFetched = time.Time{}
}

// Snapshot returns a copy of the current state for readers.
func (s *ReliabilityStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ReliabilityStore) snapshotLocked() Snapshot {
	return Snapshot{
		Report:         s.report,
		Classification: s.classification,
		Loading:        s.loading,
		Error:          s.err,
		LastFetched:    s.lastFetched,
	}
}
