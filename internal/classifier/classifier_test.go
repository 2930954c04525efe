package classifier

import (
	"testing"
	"time"

	"github.com/miradorstack/mirador-reliability/internal/models"
)

func report(status models.Status, anomalies ...models.Anomaly) *models.Report {
	return &models.Report{
		OverallStatus: status,
		Timestamp:     time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		Anomalies:     anomalies,
	}
}

func TestClassifyPartition(t *testing.T) {
	r := report(models.StatusDegraded,
		models.Anomaly{Code: "HIGH_CPU_USAGE", Severity: models.SeverityWarning},
		models.Anomaly{Code: "PREDICTION_ACCURACY_DROP", Severity: models.SeverityCritical},
		models.Anomaly{Code: "LOW_CACHE_HIT_RATE", Severity: models.SeverityInfo},
		models.Anomaly{Code: "SLOW_INGEST", Severity: models.SeverityWarning},
	)

	c := Classify(r)
	if len(c.Critical) != 1 || len(c.Warning) != 2 || len(c.Info) != 1 {
		t.Fatalf("unexpected buckets: %d/%d/%d", len(c.Critical), len(c.Warning), len(c.Info))
	}
	if c.AnomalyCount() != len(r.Anomalies) {
		t.Fatalf("partition lost anomalies: %d != %d", c.AnomalyCount(), len(r.Anomalies))
	}
}

func TestClassifyCriticalForcesDown(t *testing.T) {
	// The report claims ok but carries a critical anomaly; the critical wins.
	r := report(models.StatusOK,
		models.Anomaly{Code: "PREDICTION_ACCURACY_DROP", Severity: models.SeverityCritical, Message: "Prediction accuracy has dropped below 70%"},
	)

	c := Classify(r)
	if !c.IsDown() {
		t.Fatalf("expected down, got %s", c.Status)
	}
	if c.FirstCriticalMessage() != "Prediction accuracy has dropped below 70%" {
		t.Fatalf("unexpected critical message: %q", c.FirstCriticalMessage())
	}
}

func TestClassifyWarningLiftsOkToDegraded(t *testing.T) {
	r := report(models.StatusOK,
		models.Anomaly{Code: "HIGH_CPU_USAGE", Severity: models.SeverityWarning},
	)

	c := Classify(r)
	if !c.IsDegraded() {
		t.Fatalf("expected degraded, got %s", c.Status)
	}
	if len(c.Critical) != 0 || len(c.Warning) != 1 {
		t.Fatalf("unexpected buckets: %d critical, %d warning", len(c.Critical), len(c.Warning))
	}
}

func TestClassifyInfoAnomaliesKeepOk(t *testing.T) {
	r := report(models.StatusOK,
		models.Anomaly{Code: "LOW_CACHE_HIT_RATE", Severity: models.SeverityInfo},
	)

	c := Classify(r)
	if !c.IsReliable() {
		t.Fatalf("expected ok with residual info anomalies, got %s", c.Status)
	}
}

func TestClassifyNeverDowngrades(t *testing.T) {
	// A down report with only info anomalies stays down.
	c := Classify(report(models.StatusDown))
	if !c.IsDown() {
		t.Fatalf("expected down, got %s", c.Status)
	}
}

func TestClassifyPredicatesExclusive(t *testing.T) {
	for _, status := range []models.Status{models.StatusOK, models.StatusDegraded, models.StatusDown} {
		c := Classify(report(status))
		trues := 0
		for _, p := range []bool{c.IsReliable(), c.IsDegraded(), c.IsDown()} {
			if p {
				trues++
			}
		}
		if trues != 1 {
			t.Fatalf("status %s: expected exactly one predicate true, got %d", status, trues)
		}
	}
}

func TestClassifyNilReport(t *testing.T) {
	c := Classify(nil)
	if !c.IsDown() {
		t.Fatalf("expected nil report to classify as down")
	}
	if c.AnomalyCount() != 0 {
		t.Fatalf("expected no anomalies for nil report")
	}
}

func TestFirstCriticalMessageEmpty(t *testing.T) {
	c := Classify(report(models.StatusDown,
		models.Anomaly{Code: "REPORT_GENERATION_FAILED", Severity: models.SeverityCritical},
	))
	if c.FirstCriticalMessage() != "" {
		t.Fatalf("expected empty message, got %q", c.FirstCriticalMessage())
	}
}
