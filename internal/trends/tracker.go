package trends

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/miradorstack/mirador-reliability/internal/models"
	"github.com/miradorstack/mirador-reliability/internal/store"
)

// DefaultWindow bounds how many ingested reports contribute to a summary.
const DefaultWindow = 50

// Sink abstracts persistence for computed summaries.
type Sink interface {
	StoreSummary(ctx context.Context, summary Summary) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, summary Summary) error

// StoreSummary implements Sink.
func (f SinkFunc) StoreSummary(ctx context.Context, summary Summary) error {
	return f(ctx, summary)
}

// CodeTrend aggregates occurrences of one anomaly code across the window.
type CodeTrend struct {
	Code        string          `json:"code"`
	Category    string          `json:"category"`
	Count       int             `json:"count"`
	MaxSeverity models.Severity `json:"max_severity"`
	LastSeen    time.Time       `json:"last_seen"`
}

// Summary is the aggregated view over the most recent reports.
type Summary struct {
	WindowSize   int            `json:"window_size"`
	Reports      int            `json:"reports"`
	Codes        []CodeTrend    `json:"codes"`
	Categories   map[string]int `json:"categories"`
	StatusCounts map[string]int `json:"status_counts"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

type observation struct {
	status    models.Status
	anomalies []models.Anomaly
	seenAt    time.Time
}

// Tracker mines frequency trends from ingested reports over a bounded window.
// It subscribes to the reliability store and recomputes on every ingest, so
// readers always see a summary consistent with the latest report.
type Tracker struct {
	window int
	sink   Sink
	logger *slog.Logger

	mu           sync.Mutex
	observations []observation
}

// NewTracker constructs a tracker; sink may be nil for in-memory-only use.
func NewTracker(window int, sink Sink, logger *slog.Logger) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{window: window, sink: sink, logger: logger}
}

// Observe records a store snapshot. Intended as a store subscriber, so it only
// sees snapshots carrying a freshly ingested report.
func (t *Tracker) Observe(snap store.Snapshot) {
	if snap.Report == nil {
		return
	}

	obs := observation{
		status:    snap.Report.OverallStatus,
		anomalies: snap.Report.Anomalies,
		seenAt:    snap.LastFetched,
	}
	if obs.seenAt.IsZero() {
		obs.seenAt = time.Now()
	}

	t.mu.Lock()
	t.observations = append(t.observations, obs)
	if len(t.observations) > t.window {
		t.observations = t.observations[len(t.observations)-t.window:]
	}
	t.mu.Unlock()

	if t.sink != nil {
		if err := t.sink.StoreSummary(context.Background(), t.Summary()); err != nil {
			t.logger.Warn("trend summary store failed", slog.Any("error", err))
		}
	}
}

// Summary aggregates the current window. Codes are ordered by descending
// count, ties broken by code for stable output.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	window := append([]observation(nil), t.observations...)
	t.mu.Unlock()

	codeStats := make(map[string]*CodeTrend)
	categories := make(map[string]int)
	statusCounts := make(map[string]int)

	for _, obs := range window {
		statusCounts[string(obs.status)]++
		for _, anomaly := range obs.anomalies {
			trend, ok := codeStats[anomaly.Code]
			if !ok {
				trend = &CodeTrend{Code: anomaly.Code, Category: anomaly.Category}
				codeStats[anomaly.Code] = trend
			}
			trend.Count++
			if severityRank(anomaly.Severity) > severityRank(trend.MaxSeverity) {
				trend.MaxSeverity = anomaly.Severity
			}
			if obs.seenAt.After(trend.LastSeen) {
				trend.LastSeen = obs.seenAt
			}
			if anomaly.Category != "" {
				trend.Category = anomaly.Category
				categories[anomaly.Category]++
			}
		}
	}

	codes := make([]CodeTrend, 0, len(codeStats))
	for _, trend := range codeStats {
		codes = append(codes, *trend)
	}
	sort.Slice(codes, func(i, j int) bool {
		if codes[i].Count != codes[j].Count {
			return codes[i].Count > codes[j].Count
		}
		return codes[i].Code < codes[j].Code
	})

	return Summary{
		WindowSize:   t.window,
		Reports:      len(window),
		Codes:        codes,
		Categories:   categories,
		StatusCounts: statusCounts,
		GeneratedAt:  time.Now().UTC(),
	}
}

// Reset drops all recorded observations.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observations = nil
}

func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityCritical:
		return 3
	case models.SeverityWarning:
		return 2
	case models.SeverityInfo:
		return 1
	}
	return 0
}
