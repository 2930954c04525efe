package source

import (
	"context"

	"github.com/miradorstack/mirador-reliability/internal/config"
	"github.com/miradorstack/mirador-reliability/internal/models"
)

// ReportSource is the contract the monitoring core requires from any report
// producer. Every concrete producer satisfies this interface explicitly; there
// is no optional-method probing.
//
// Initialize is best-effort: callers log failures and keep going. A nil report
// from GenerateReport with a nil error means "nothing to report this tick".
// Cleanup is best-effort on teardown.
type ReportSource interface {
	Initialize(ctx context.Context, cfg config.MonitoringConfig) error
	GenerateReport(ctx context.Context) (*models.Report, error)
	Cleanup() error
}

// GenerateOptions modify a single report request.
type GenerateOptions struct {
	IncludeTraces bool
}

// TraceCapableSource is satisfied by sources that can attach trace entries on
// demand; the store's includeTraces fetch option uses it when available.
type TraceCapableSource interface {
	ReportSource
	GenerateReportWithOptions(ctx context.Context, opts GenerateOptions) (*models.Report, error)
}
