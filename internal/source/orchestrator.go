package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/miradorstack/mirador-reliability/internal/config"
	"github.com/miradorstack/mirador-reliability/internal/models"
	"github.com/miradorstack/mirador-reliability/internal/utils"
)

// OrchestratorClient fetches reliability reports from the backend
// orchestrator over HTTP. The client timeout bounds each report request, so a
// hung orchestrator delays the next tick instead of stacking calls.
type OrchestratorClient struct {
	baseURL        string
	reportPath     string
	initializePath string
	httpClient     *http.Client
}

// NewOrchestratorClient constructs a client targeting the configured orchestrator.
func NewOrchestratorClient(cfg config.OrchestratorConfig) *OrchestratorClient {
	return &OrchestratorClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		reportPath:     cfg.ReportPath,
		initializePath: cfg.InitializePath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Initialize pushes the monitoring configuration to the orchestrator so it
// knows which checks to run and how often a poll will arrive.
func (c *OrchestratorClient) Initialize(ctx context.Context, cfg config.MonitoringConfig) error {
	if c == nil {
		return fmt.Errorf("orchestrator client not initialised")
	}
	if c.baseURL == "" {
		return fmt.Errorf("orchestrator base URL not configured")
	}

	payload := map[string]interface{}{
		"check_interval_ms":        cfg.CheckInterval.Milliseconds(),
		"performance_tracking":     cfg.PerformanceTracking,
		"data_pipeline_monitoring": cfg.DataPipelineMonitoring,
		"service_health_checks":    cfg.ServiceHealthChecks,
		"auto_recovery":            cfg.AutoRecovery,
		"trend_analysis":           cfg.TrendAnalysis,
		"predictive_alerts":        cfg.PredictiveAlerts,
	}

	if err := c.postJSON(ctx, c.resolvePath(c.initializePath), payload); err != nil {
		return utils.NewAppError("orchestrator.Initialize", "config push failed", err)
	}
	return nil
}

// GenerateReport fetches and validates the current reliability report.
func (c *OrchestratorClient) GenerateReport(ctx context.Context) (*models.Report, error) {
	return c.GenerateReportWithOptions(ctx, GenerateOptions{})
}

// GenerateReportWithOptions fetches a report, optionally asking the
// orchestrator to attach trace entries. A 204 response means the orchestrator
// has nothing to report this tick.
func (c *OrchestratorClient) GenerateReportWithOptions(ctx context.Context, opts GenerateOptions) (*models.Report, error) {
	if c == nil {
		return nil, fmt.Errorf("orchestrator client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("orchestrator base URL not configured")
	}

	endpoint := c.resolvePath(c.reportPath)
	if opts.IncludeTraces {
		endpoint += "?include_traces=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, utils.NewAppError("orchestrator.GenerateReport", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, utils.NewAppError("orchestrator.GenerateReport", "unexpected status "+resp.Status, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read report body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return nil, nil
	}

	report, err := models.ParseReport(body)
	if err != nil {
		return nil, utils.NewAppError("orchestrator.GenerateReport", "report rejected", err)
	}
	return report, nil
}

// Cleanup releases idle connections; the orchestrator holds no per-session state.
func (c *OrchestratorClient) Cleanup() error {
	if c == nil || c.httpClient == nil {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *OrchestratorClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *OrchestratorClient) postJSON(ctx context.Context, endpoint string, payload any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("orchestrator returned %s", resp.Status)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Timeout reports the per-request budget, used by callers for log context.
func (c *OrchestratorClient) Timeout() time.Duration {
	if c == nil || c.httpClient == nil {
		return 0
	}
	return c.httpClient.Timeout
}
