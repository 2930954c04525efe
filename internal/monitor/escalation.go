package monitor

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/miradorstack/mirador-reliability/internal/metrics"
	"github.com/miradorstack/mirador-reliability/internal/store"
)

// EscalationPrefix starts every message delivered to the host callback.
const EscalationPrefix = "Critical system health issue detected: "

// UnknownIssueMessage substitutes for a critical status whose anomaly list
// carries no message.
const UnknownIssueMessage = "Unknown issue"

// EscalationGate decides when a down classification reaches the host's
// critical-issue callback. Delivery is deferred off the tick path. The gate
// fires at most once per snapshot and suppresses repeats of the same message
// until the status leaves down, which re-arms it.
type EscalationGate struct {
	callback func(message string)
	deferrer Deferrer
	logger   *slog.Logger
	closed   atomic.Bool

	mu       sync.Mutex
	engaged  bool
	lastSent string
}

// NewEscalationGate wires a host callback. A nil callback yields a gate that
// classifies but never notifies.
func NewEscalationGate(callback func(string), deferrer Deferrer, logger *slog.Logger) *EscalationGate {
	if deferrer == nil {
		deferrer = TimerDeferrer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EscalationGate{
		callback: callback,
		deferrer: deferrer,
		logger:   logger,
	}
}

// Observe inspects a store snapshot and escalates if warranted. Intended as a
// store subscriber, so it runs once per ingested report.
func (g *EscalationGate) Observe(snap store.Snapshot) {
	if g.closed.Load() {
		return
	}

	if !snap.Classification.IsDown() {
		g.mu.Lock()
		g.engaged = false
		g.lastSent = ""
		g.mu.Unlock()
		return
	}

	detail := snap.Classification.FirstCriticalMessage()
	if detail == "" {
		detail = UnknownIssueMessage
	}
	message := EscalationPrefix + detail

	g.mu.Lock()
	if g.engaged && g.lastSent == message {
		g.mu.Unlock()
		return
	}
	g.engaged = true
	g.lastSent = message
	g.mu.Unlock()

	if g.callback == nil {
		return
	}

	g.deferrer.Defer(func() {
		if g.closed.Load() {
			return
		}
		metrics.ObserveEscalation()
		g.logger.Warn("critical issue escalated", slog.String("message", message))
		g.callback(message)
	})
}

// Close drops any not-yet-delivered escalation and silences the gate. Safe to
// call multiple times.
func (g *EscalationGate) Close() {
	g.closed.Store(true)
}
