package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/miradorstack/mirador-reliability/internal/classifier"
	"github.com/miradorstack/mirador-reliability/internal/models"
	"github.com/miradorstack/mirador-reliability/internal/store"
)

// syncDeferrer runs deferred work inline, keeping tests deterministic.
type syncDeferrer struct{}

func (syncDeferrer) Defer(fn func()) { fn() }

type callbackRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (c *callbackRecorder) record(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

func (c *callbackRecorder) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

func snapshotFor(status models.Status, anomalies ...models.Anomaly) store.Snapshot {
	report := &models.Report{
		OverallStatus: status,
		Timestamp:     time.Now().UTC(),
		Anomalies:     anomalies,
	}
	return store.Snapshot{
		Report:         report,
		Classification: classifier.Classify(report),
		LastFetched:    time.Now(),
	}
}

func TestEscalationFiresOnceForCriticalReport(t *testing.T) {
	rec := &callbackRecorder{}
	gate := NewEscalationGate(rec.record, syncDeferrer{}, nil)

	gate.Observe(snapshotFor(models.StatusDown, models.Anomaly{
		Code:     "PREDICTION_ACCURACY_DROP",
		Severity: models.SeverityCritical,
		Message:  "Prediction accuracy has dropped below 70%",
	}))

	messages := rec.all()
	if len(messages) != 1 {
		t.Fatalf("expected one escalation, got %d", len(messages))
	}
	want := "Critical system health issue detected: Prediction accuracy has dropped below 70%"
	if messages[0] != want {
		t.Fatalf("unexpected message: %q", messages[0])
	}
}

func TestEscalationSuppressesRepeatMessage(t *testing.T) {
	rec := &callbackRecorder{}
	gate := NewEscalationGate(rec.record, syncDeferrer{}, nil)

	down := snapshotFor(models.StatusDown, models.Anomaly{
		Code: "DB_DOWN", Severity: models.SeverityCritical, Message: "Database unreachable",
	})
	gate.Observe(down)
	gate.Observe(down)
	gate.Observe(down)

	if got := len(rec.all()); got != 1 {
		t.Fatalf("expected suppression of repeats, got %d escalations", got)
	}
}

func TestEscalationReArmsAfterRecovery(t *testing.T) {
	rec := &callbackRecorder{}
	gate := NewEscalationGate(rec.record, syncDeferrer{}, nil)

	down := snapshotFor(models.StatusDown, models.Anomaly{
		Code: "DB_DOWN", Severity: models.SeverityCritical, Message: "Database unreachable",
	})
	gate.Observe(down)
	gate.Observe(snapshotFor(models.StatusOK))
	gate.Observe(down)

	if got := len(rec.all()); got != 2 {
		t.Fatalf("expected escalation after recovery, got %d", got)
	}
}

func TestEscalationNewMessageWhileDown(t *testing.T) {
	rec := &callbackRecorder{}
	gate := NewEscalationGate(rec.record, syncDeferrer{}, nil)

	gate.Observe(snapshotFor(models.StatusDown, models.Anomaly{
		Code: "DB_DOWN", Severity: models.SeverityCritical, Message: "Database unreachable",
	}))
	gate.Observe(snapshotFor(models.StatusDown, models.Anomaly{
		Code: "MODEL_STALLED", Severity: models.SeverityCritical, Message: "Model inference stalled",
	}))

	messages := rec.all()
	if len(messages) != 2 {
		t.Fatalf("expected two escalations for distinct messages, got %d", len(messages))
	}
}

func TestEscalationUnknownIssuePlaceholder(t *testing.T) {
	rec := &callbackRecorder{}
	gate := NewEscalationGate(rec.record, syncDeferrer{}, nil)

	// Critical status with an empty anomaly list must not crash.
	gate.Observe(snapshotFor(models.StatusDown))

	messages := rec.all()
	if len(messages) != 1 {
		t.Fatalf("expected one escalation, got %d", len(messages))
	}
	if messages[0] != EscalationPrefix+UnknownIssueMessage {
		t.Fatalf("unexpected placeholder message: %q", messages[0])
	}
}

func TestEscalationNotFiredForWarnings(t *testing.T) {
	rec := &callbackRecorder{}
	gate := NewEscalationGate(rec.record, syncDeferrer{}, nil)

	gate.Observe(snapshotFor(models.StatusOK, models.Anomaly{
		Code: "HIGH_CPU_USAGE", Severity: models.SeverityWarning,
	}))

	if got := len(rec.all()); got != 0 {
		t.Fatalf("warning-only report escalated %d times", got)
	}
}

func TestEscalationClosedGateDropsDelivery(t *testing.T) {
	rec := &callbackRecorder{}

	// Capture the deferred work instead of running it, then close the gate
	// before delivery to model teardown racing an in-flight escalation.
	var pending []func()
	capture := deferFunc(func(fn func()) { pending = append(pending, fn) })

	gate := NewEscalationGate(rec.record, capture, nil)
	gate.Observe(snapshotFor(models.StatusDown, models.Anomaly{
		Code: "DB_DOWN", Severity: models.SeverityCritical, Message: "Database unreachable",
	}))
	gate.Close()

	for _, fn := range pending {
		fn()
	}
	if got := len(rec.all()); got != 0 {
		t.Fatalf("closed gate delivered %d escalations", got)
	}
}

type deferFunc func(fn func())

func (d deferFunc) Defer(fn func()) { d(fn) }
