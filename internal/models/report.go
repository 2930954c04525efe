package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/miradorstack/mirador-reliability/internal/utils"
)

// Status enumerates overall system health states.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Valid reports whether the status is one of the three defined values.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusDegraded, StatusDown:
		return true
	}
	return false
}

// Severity captures anomaly impact levels.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid reports whether the severity is one of the three defined values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Anomaly is one detected condition inside a reliability report.
type Anomaly struct {
	Code     string
	Severity Severity
	Message  string
	Category string
}

// ServiceHealth summarises one monitored service inside a report.
type ServiceHealth struct {
	Name      string
	Status    Status
	LatencyMs float64
}

// Trace is a lightweight trace entry attached when traces are requested.
type Trace struct {
	TraceID    string
	Operation  string
	DurationMs float64
	Status     string
	Timestamp  time.Time
}

// Report is a point-in-time reliability snapshot produced by the orchestrator.
// Anomalies keep detection order; derived severity counts are always recomputed
// from the slice, never cached alongside it.
type Report struct {
	OverallStatus      Status
	Timestamp          time.Time
	PredictionAccuracy float64
	SystemStability    float64
	DataQualityScore   float64
	Anomalies          []Anomaly
	Services           []ServiceHealth
	Notes              []string
	GenerationTimeMs   float64
	IncludeTraces      bool
	Traces             []Trace
}

type wireAnomaly struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

type wireService struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms"`
}

type wireTrace struct {
	TraceID    string  `json:"trace_id"`
	Operation  string  `json:"operation"`
	DurationMs float64 `json:"duration_ms"`
	Status     string  `json:"status"`
	Timestamp  string  `json:"timestamp"`
}

type wireReport struct {
	OverallStatus      string        `json:"overall_status"`
	Timestamp          string        `json:"timestamp"`
	PredictionAccuracy float64       `json:"prediction_accuracy"`
	SystemStability    float64       `json:"system_stability"`
	DataQualityScore   float64       `json:"data_quality_score"`
	Anomalies          []wireAnomaly `json:"anomalies"`
	Services           []wireService `json:"services"`
	Notes              []string      `json:"notes"`
	GenerationTimeMs   float64       `json:"generation_time_ms"`
	IncludeTraces      bool          `json:"include_traces"`
	Traces             []wireTrace   `json:"traces"`
}

// ParseReport decodes and validates a raw orchestrator payload. Malformed
// reports are rejected here so nothing downstream handles loose shapes.
func ParseReport(data []byte) (*Report, error) {
	var wire wireReport
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	status := Status(wire.OverallStatus)
	if !status.Valid() {
		return nil, fmt.Errorf("invalid overall_status %q", wire.OverallStatus)
	}

	ts, err := utils.ParseRFC3339(wire.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	for _, pair := range []struct {
		name  string
		value float64
	}{
		{"prediction_accuracy", wire.PredictionAccuracy},
		{"system_stability", wire.SystemStability},
		{"data_quality_score", wire.DataQualityScore},
	} {
		if pair.value < 0 || pair.value > 100 {
			return nil, fmt.Errorf("%s %.2f outside [0,100]", pair.name, pair.value)
		}
	}

	report := &Report{
		OverallStatus:      status,
		Timestamp:          ts,
		PredictionAccuracy: wire.PredictionAccuracy,
		SystemStability:    wire.SystemStability,
		DataQualityScore:   wire.DataQualityScore,
		Notes:              wire.Notes,
		GenerationTimeMs:   wire.GenerationTimeMs,
		IncludeTraces:      wire.IncludeTraces,
	}

	report.Anomalies = make([]Anomaly, 0, len(wire.Anomalies))
	for i, a := range wire.Anomalies {
		severity := Severity(a.Severity)
		if !severity.Valid() {
			return nil, fmt.Errorf("anomaly %d: invalid severity %q", i, a.Severity)
		}
		if a.Code == "" {
			return nil, fmt.Errorf("anomaly %d: missing code", i)
		}
		report.Anomalies = append(report.Anomalies, Anomaly{
			Code:     a.Code,
			Severity: severity,
			Message:  a.Message,
			Category: a.Category,
		})
	}

	report.Services = make([]ServiceHealth, 0, len(wire.Services))
	for i, svc := range wire.Services {
		svcStatus := Status(svc.Status)
		if !svcStatus.Valid() {
			return nil, fmt.Errorf("service %d: invalid status %q", i, svc.Status)
		}
		report.Services = append(report.Services, ServiceHealth{
			Name:      svc.Name,
			Status:    svcStatus,
			LatencyMs: svc.LatencyMs,
		})
	}

	if len(wire.Traces) > 0 {
		report.Traces = make([]Trace, 0, len(wire.Traces))
		for _, tr := range wire.Traces {
			traceTime, err := utils.ParseRFC3339(tr.Timestamp)
			if err != nil {
				// Traces are diagnostic extras; a bad timestamp drops the
				// entry rather than the whole report.
				continue
			}
			report.Traces = append(report.Traces, Trace{
				TraceID:    tr.TraceID,
				Operation:  tr.Operation,
				DurationMs: tr.DurationMs,
				Status:     tr.Status,
				Timestamp:  traceTime,
			})
		}
	}

	return report, nil
}
