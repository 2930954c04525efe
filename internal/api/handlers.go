package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miradorstack/mirador-reliability/internal/models"
	"github.com/miradorstack/mirador-reliability/internal/monitor"
	"github.com/miradorstack/mirador-reliability/internal/store"
	"github.com/miradorstack/mirador-reliability/internal/trends"
)

// AnomalyDisplayLimit caps how many anomalies the summary view carries; the
// remainder is reported as a count so dashboards stay compact.
const AnomalyDisplayLimit = 5

// AnomalyView is the wire shape of one anomaly.
type AnomalyView struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message,omitempty"`
	Category string `json:"category,omitempty"`
}

// ScoreView groups the three report quality scores.
type ScoreView struct {
	PredictionAccuracy float64 `json:"prediction_accuracy"`
	SystemStability    float64 `json:"system_stability"`
	DataQualityScore   float64 `json:"data_quality_score"`
}

// SummaryView is the compact reliability state served to dashboards.
type SummaryView struct {
	Status          string        `json:"status"`
	Timestamp       *time.Time    `json:"timestamp,omitempty"`
	Scores          *ScoreView    `json:"scores,omitempty"`
	Anomalies       []AnomalyView `json:"anomalies"`
	AdditionalCount int           `json:"additional_count"`
	CriticalCount   int           `json:"critical_count"`
	WarningCount    int           `json:"warning_count"`
	InfoCount       int           `json:"info_count"`
	Loading         bool          `json:"loading"`
	Error           string        `json:"error,omitempty"`
	LastFetched     *time.Time    `json:"last_fetched,omitempty"`
	SchedulerState  string        `json:"scheduler_state"`
}

// ServiceView is the wire shape of one monitored service.
type ServiceView struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms"`
}

// TraceView is the wire shape of one diagnostic trace.
type TraceView struct {
	TraceID    string    `json:"trace_id"`
	Operation  string    `json:"operation"`
	DurationMs float64   `json:"duration_ms"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// FullView extends the summary with the uncapped anomaly list and the report
// extras the compact view omits.
type FullView struct {
	SummaryView
	Services         []ServiceView `json:"services,omitempty"`
	Notes            []string      `json:"notes,omitempty"`
	GenerationTimeMs float64       `json:"generation_time_ms,omitempty"`
	Traces           []TraceView   `json:"traces,omitempty"`
}

// ToSummaryView maps a store snapshot into the compact wire shape. Anomalies
// keep detection order; only the first AnomalyDisplayLimit survive the cap.
func ToSummaryView(snap store.Snapshot, state monitor.State) SummaryView {
	view := SummaryView{
		Status:         "unknown",
		Anomalies:      []AnomalyView{},
		Loading:        snap.Loading,
		Error:          snap.Error,
		SchedulerState: state.String(),
	}
	if !snap.LastFetched.IsZero() {
		fetched := snap.LastFetched
		view.LastFetched = &fetched
	}
	if snap.Report == nil {
		return view
	}

	view.Status = string(snap.Classification.Status)
	ts := snap.Report.Timestamp
	view.Timestamp = &ts
	view.Scores = &ScoreView{
		PredictionAccuracy: snap.Report.PredictionAccuracy,
		SystemStability:    snap.Report.SystemStability,
		DataQualityScore:   snap.Report.DataQualityScore,
	}
	view.CriticalCount = len(snap.Classification.Critical)
	view.WarningCount = len(snap.Classification.Warning)
	view.InfoCount = len(snap.Classification.Info)

	anomalies := snap.Report.Anomalies
	if len(anomalies) > AnomalyDisplayLimit {
		view.AdditionalCount = len(anomalies) - AnomalyDisplayLimit
		anomalies = anomalies[:AnomalyDisplayLimit]
	}
	for _, a := range anomalies {
		view.Anomalies = append(view.Anomalies, toAnomalyView(a))
	}
	return view
}

// ToFullView maps a store snapshot into the uncapped wire shape.
func ToFullView(snap store.Snapshot, state monitor.State) FullView {
	view := FullView{SummaryView: ToSummaryView(snap, state)}
	if snap.Report == nil {
		return view
	}

	// The summary cap does not apply here.
	view.Anomalies = make([]AnomalyView, 0, len(snap.Report.Anomalies))
	view.AdditionalCount = 0
	for _, a := range snap.Report.Anomalies {
		view.Anomalies = append(view.Anomalies, toAnomalyView(a))
	}

	for _, svc := range snap.Report.Services {
		view.Services = append(view.Services, ServiceView{
			Name:      svc.Name,
			Status:    string(svc.Status),
			LatencyMs: svc.LatencyMs,
		})
	}
	view.Notes = snap.Report.Notes
	view.GenerationTimeMs = snap.Report.GenerationTimeMs
	for _, tr := range snap.Report.Traces {
		view.Traces = append(view.Traces, TraceView{
			TraceID:    tr.TraceID,
			Operation:  tr.Operation,
			DurationMs: tr.DurationMs,
			Status:     tr.Status,
			Timestamp:  tr.Timestamp,
		})
	}
	return view
}

func toAnomalyView(a models.Anomaly) AnomalyView {
	return AnomalyView{
		Code:     a.Code,
		Severity: string(a.Severity),
		Message:  a.Message,
		Category: a.Category,
	}
}

// SchedulerStatus exposes the lifecycle state to handlers without coupling
// them to the scheduler itself.
type SchedulerStatus interface {
	State() monitor.State
}

// Handler serves the reliability HTTP API.
type Handler struct {
	reports *store.ReliabilityStore
	tracker *trends.Tracker
	sched   SchedulerStatus
	hub     *Hub
	logger  *slog.Logger
}

// NewHandler wires the API over the store, trend tracker and scheduler. Hub
// may be nil to disable the websocket endpoint.
func NewHandler(reports *store.ReliabilityStore, tracker *trends.Tracker, sched SchedulerStatus, hub *Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		reports: reports,
		tracker: tracker,
		sched:   sched,
		hub:     hub,
		logger:  logger,
	}
}

// Routes builds the HTTP mux for the API surface.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /api/v1/reliability", h.handleSummary)
	mux.HandleFunc("GET /api/v1/reliability/full", h.handleFull)
	mux.HandleFunc("POST /api/v1/reliability/refresh", h.handleRefresh)
	mux.HandleFunc("POST /api/v1/reliability/error/clear", h.handleClearError)
	mux.HandleFunc("GET /api/v1/reliability/trends", h.handleTrends)
	if h.hub != nil {
		mux.HandleFunc("GET /api/v1/reliability/ws", h.handleWebsocket)
	}
	return mux
}

// SnapshotSubscriber returns a store subscriber that pushes each ingested
// report to websocket clients.
func (h *Handler) SnapshotSubscriber() store.Subscriber {
	return func(snap store.Snapshot) {
		if h.hub == nil {
			return
		}
		h.hub.Broadcast(Message{Type: "report", Data: ToSummaryView(snap, h.schedulerState())})
	}
}

func (h *Handler) schedulerState() monitor.State {
	if h.sched == nil {
		return monitor.StateIdle
	}
	return h.sched.State()
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"scheduler": h.schedulerState().String(),
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, ToSummaryView(h.reports.Snapshot(), h.schedulerState()))
}

func (h *Handler) handleFull(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, ToFullView(h.reports.Snapshot(), h.schedulerState()))
}

// handleRefresh forces a fetch outside the polling cadence. The fetch outcome
// lands in the snapshot, so a failed refresh still answers 200 with the
// previous report and the recorded error.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	opts := store.Options{Force: true}
	if v := r.URL.Query().Get("include_traces"); strings.EqualFold(v, "true") || v == "1" {
		opts.IncludeTraces = true
	}

	if err := h.reports.FetchReport(r.Context(), opts); err != nil {
		h.logger.Warn("manual refresh failed", slog.Any("error", err))
	}
	h.writeJSON(w, http.StatusOK, ToSummaryView(h.reports.Snapshot(), h.schedulerState()))
}

func (h *Handler) handleClearError(w http.ResponseWriter, _ *http.Request) {
	h.reports.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTrends(w http.ResponseWriter, _ *http.Request) {
	if h.tracker == nil {
		http.Error(w, "trend analysis disabled", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, h.tracker.Summary())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (h *Handler) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := NewClient(h.hub, conn, h.logger)

	// Seed the current state before the hub or the pumps can touch the send
	// channel; once ReadPump runs, a dropped connection may unregister the
	// client and close the channel.
	client.send <- Message{Type: "report", Data: ToSummaryView(h.reports.Snapshot(), h.schedulerState())}

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("response encode failed", slog.Any("error", err))
	}
}
