package trends

import (
	"context"
	"testing"
	"time"

	"github.com/miradorstack/mirador-reliability/internal/models"
	"github.com/miradorstack/mirador-reliability/internal/store"
)

func snapshotWith(status models.Status, seenAt time.Time, anomalies ...models.Anomaly) store.Snapshot {
	return store.Snapshot{
		Report: &models.Report{
			OverallStatus: status,
			Timestamp:     seenAt.UTC(),
			Anomalies:     anomalies,
		},
		LastFetched: seenAt,
	}
}

func TestTrackerAggregatesCodes(t *testing.T) {
	tracker := NewTracker(10, nil, nil)
	now := time.Now()

	tracker.Observe(snapshotWith(models.StatusDegraded, now,
		models.Anomaly{Code: "HIGH_CPU_USAGE", Severity: models.SeverityWarning, Category: "performance"},
	))
	tracker.Observe(snapshotWith(models.StatusDown, now.Add(time.Minute),
		models.Anomaly{Code: "HIGH_CPU_USAGE", Severity: models.SeverityCritical, Category: "performance"},
		models.Anomaly{Code: "PIPELINE_LAG", Severity: models.SeverityWarning, Category: "data"},
	))

	summary := tracker.Summary()
	if summary.Reports != 2 {
		t.Fatalf("reports = %d, want 2", summary.Reports)
	}
	if len(summary.Codes) != 2 {
		t.Fatalf("codes = %d, want 2", len(summary.Codes))
	}

	top := summary.Codes[0]
	if top.Code != "HIGH_CPU_USAGE" || top.Count != 2 {
		t.Fatalf("top trend = %+v", top)
	}
	if top.MaxSeverity != models.SeverityCritical {
		t.Fatalf("max severity = %s, want critical", top.MaxSeverity)
	}
	if !top.LastSeen.Equal(now.Add(time.Minute)) {
		t.Fatalf("last seen = %v", top.LastSeen)
	}

	if summary.Categories["performance"] != 2 || summary.Categories["data"] != 1 {
		t.Fatalf("categories = %v", summary.Categories)
	}
	if summary.StatusCounts["degraded"] != 1 || summary.StatusCounts["down"] != 1 {
		t.Fatalf("status counts = %v", summary.StatusCounts)
	}
}

func TestTrackerWindowEviction(t *testing.T) {
	tracker := NewTracker(3, nil, nil)
	now := time.Now()

	tracker.Observe(snapshotWith(models.StatusOK, now,
		models.Anomaly{Code: "EVICTED", Severity: models.SeverityInfo}))
	for i := 1; i <= 3; i++ {
		tracker.Observe(snapshotWith(models.StatusOK, now.Add(time.Duration(i)*time.Minute),
			models.Anomaly{Code: "KEPT", Severity: models.SeverityInfo}))
	}

	summary := tracker.Summary()
	if summary.Reports != 3 {
		t.Fatalf("reports = %d, want 3", summary.Reports)
	}
	for _, trend := range summary.Codes {
		if trend.Code == "EVICTED" {
			t.Fatal("evicted observation still present in summary")
		}
	}
}

func TestTrackerIgnoresEmptySnapshots(t *testing.T) {
	tracker := NewTracker(10, nil, nil)
	tracker.Observe(store.Snapshot{})

	if got := tracker.Summary().Reports; got != 0 {
		t.Fatalf("reports = %d, want 0", got)
	}
}

func TestTrackerStableOrderingOnTies(t *testing.T) {
	tracker := NewTracker(10, nil, nil)
	now := time.Now()

	tracker.Observe(snapshotWith(models.StatusOK, now,
		models.Anomaly{Code: "B_CODE", Severity: models.SeverityInfo},
		models.Anomaly{Code: "A_CODE", Severity: models.SeverityInfo},
	))

	summary := tracker.Summary()
	if len(summary.Codes) != 2 || summary.Codes[0].Code != "A_CODE" {
		t.Fatalf("tie ordering = %+v", summary.Codes)
	}
}

func TestTrackerPersistsThroughSink(t *testing.T) {
	var stored int
	sink := SinkFunc(func(_ context.Context, summary Summary) error {
		stored = summary.Reports
		return nil
	})

	tracker := NewTracker(10, sink, nil)
	tracker.Observe(snapshotWith(models.StatusOK, time.Now(),
		models.Anomaly{Code: "HIGH_CPU_USAGE", Severity: models.SeverityWarning}))

	if stored != 1 {
		t.Fatalf("sink saw %d reports, want 1", stored)
	}
}

func TestTrackerReset(t *testing.T) {
	tracker := NewTracker(10, nil, nil)
	tracker.Observe(snapshotWith(models.StatusOK, time.Now(),
		models.Anomaly{Code: "HIGH_CPU_USAGE", Severity: models.SeverityWarning}))
	tracker.Reset()

	if got := tracker.Summary().Reports; got != 0 {
		t.Fatalf("reports after reset = %d, want 0", got)
	}
}
