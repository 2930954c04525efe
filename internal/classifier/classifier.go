package classifier

import (
	"github.com/miradorstack/mirador-reliability/internal/models"
)

// Classification is the derived view of a single reliability report: the
// effective status plus anomalies partitioned by severity. Every anomaly in
// the report lands in exactly one bucket.
type Classification struct {
	Status   models.Status
	Critical []models.Anomaly
	Warning  []models.Anomaly
	Info     []models.Anomaly
}

// Classify derives status and severity buckets from a report.
//
// The report's overall_status is authoritative, with two escalations layered
// on top: any critical anomaly forces down, and a warning anomaly lifts ok to
// degraded. The status is never downgraded below what the report claims, so a
// report may legitimately stay ok while carrying informational anomalies.
// A nil report classifies as down: no report is indistinguishable from an
// orchestrator that cannot answer.
func Classify(report *models.Report) Classification {
	if report == nil {
		return Classification{Status: models.StatusDown}
	}

	c := Classification{Status: report.OverallStatus}

	for _, anomaly := range report.Anomalies {
		switch anomaly.Severity {
		case models.SeverityCritical:
			c.Critical = append(c.Critical, anomaly)
		case models.SeverityWarning:
			c.Warning = append(c.Warning, anomaly)
		default:
			c.Info = append(c.Info, anomaly)
		}
	}

	if len(c.Critical) > 0 {
		c.Status = models.StatusDown
	} else if len(c.Warning) > 0 && c.Status == models.StatusOK {
		c.Status = models.StatusDegraded
	}

	return c
}

// IsReliable reports whether the effective status is ok.
func (c Classification) IsReliable() bool { return c.Status == models.StatusOK }

// IsDegraded reports whether the effective status is degraded.
func (c Classification) IsDegraded() bool { return c.Status == models.StatusDegraded }

// IsDown reports whether the effective status is down.
func (c Classification) IsDown() bool { return c.Status == models.StatusDown }

// AnomalyCount returns the total number of bucketed anomalies.
func (c Classification) AnomalyCount() int {
	return len(c.Critical) + len(c.Warning) + len(c.Info)
}

// FirstCriticalMessage returns the message of the first critical anomaly in
// detection order, or empty when none carries one.
func (c Classification) FirstCriticalMessage() string {
	for _, anomaly := range c.Critical {
		if anomaly.Message != "" {
			return anomaly.Message
		}
	}
	return ""
}
