package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

type anomaly struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

type serviceHealth struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms"`
}

type trace struct {
	TraceID    string  `json:"trace_id"`
	Operation  string  `json:"operation"`
	DurationMs float64 `json:"duration_ms"`
	Status     string  `json:"status"`
	Timestamp  string  `json:"timestamp"`
}

type report struct {
	OverallStatus      string          `json:"overall_status"`
	Timestamp          string          `json:"timestamp"`
	PredictionAccuracy float64         `json:"prediction_accuracy"`
	SystemStability    float64         `json:"system_stability"`
	DataQualityScore   float64         `json:"data_quality_score"`
	Anomalies          []anomaly       `json:"anomalies"`
	Services           []serviceHealth `json:"services"`
	Notes              []string        `json:"notes"`
	GenerationTimeMs   float64         `json:"generation_time_ms"`
	IncludeTraces      bool            `json:"include_traces"`
	Traces             []trace         `json:"traces,omitempty"`
}

// Rotates healthy, degraded and down reports so the monitor exercises every
// classification path during local development.
func buildReport(cycle int64, includeTraces bool) report {
	now := time.Now().UTC()
	r := report{
		Timestamp:        now.Format(time.RFC3339),
		GenerationTimeMs: 42,
		IncludeTraces:    includeTraces,
		Services: []serviceHealth{
			{Name: "prediction-engine", Status: "ok", LatencyMs: 120},
			{Name: "data-pipeline", Status: "ok", LatencyMs: 45},
		},
	}

	switch cycle % 3 {
	case 0:
		r.OverallStatus = "ok"
		r.PredictionAccuracy = 94.2
		r.SystemStability = 97.8
		r.DataQualityScore = 99.1
		r.Notes = []string{"All systems nominal"}
	case 1:
		r.OverallStatus = "ok"
		r.PredictionAccuracy = 86.4
		r.SystemStability = 92.0
		r.DataQualityScore = 95.5
		r.Anomalies = []anomaly{
			{Code: "HIGH_CPU_USAGE", Severity: "warning", Message: "CPU usage above 80% for 5 minutes", Category: "performance"},
			{Code: "PIPELINE_LAG", Severity: "warning", Message: "Ingest lag at 45 seconds", Category: "data"},
		}
	default:
		r.OverallStatus = "ok"
		r.PredictionAccuracy = 64.9
		r.SystemStability = 71.3
		r.DataQualityScore = 88.0
		r.Anomalies = []anomaly{
			{Code: "PREDICTION_ACCURACY_DROP", Severity: "critical", Message: "Prediction accuracy has dropped below 70%", Category: "model"},
			{Code: "HIGH_CPU_USAGE", Severity: "warning", Message: "CPU usage above 80% for 5 minutes", Category: "performance"},
		}
		r.Services[0].Status = "degraded"
		r.Services[0].LatencyMs = 890
	}

	if includeTraces {
		r.Traces = []trace{
			{
				TraceID:    "trace-abc",
				Operation:  "model.predict",
				DurationMs: 950,
				Status:     "error",
				Timestamp:  now.Add(-90 * time.Second).Format(time.RFC3339),
			},
			{
				TraceID:    "trace-abc",
				Operation:  "pipeline.ingest",
				DurationMs: 240,
				Status:     "ok",
				Timestamp:  now.Add(-80 * time.Second).Format(time.RFC3339),
			},
		}
	}

	return r
}

func main() {
	var cycle atomic.Int64
	logger := log.New(log.Writer(), "orchestrator-mock ", log.LstdFlags|log.Lmicroseconds)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v2/diagnostics/reliability", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		includeTraces := r.URL.Query().Get("include_traces") == "true"
		writeJSON(w, buildReport(cycle.Add(1), includeTraces))
	})

	mux.HandleFunc("/api/v2/diagnostics/reliability/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var flags map[string]any
		if err := json.NewDecoder(r.Body).Decode(&flags); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		logger.Printf("monitoring config received: %v", flags)
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:    ":8080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
