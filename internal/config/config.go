package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownLevel signals a monitoring level outside the three defined values.
// This is the one caller programming error in the subsystem and fails fast.
var ErrUnknownLevel = errors.New("unknown monitoring level")

// Level names accepted by ResolveLevel.
const (
	LevelMinimal       = "minimal"
	LevelStandard      = "standard"
	LevelComprehensive = "comprehensive"
)

// MonitoringConfig is the concrete polling configuration derived from a level.
// It is immutable for the session unless the level changes.
type MonitoringConfig struct {
	CheckInterval          time.Duration
	PerformanceTracking    bool
	DataPipelineMonitoring bool
	ServiceHealthChecks    bool
	AutoRecovery           bool
	TrendAnalysis          bool
	PredictiveAlerts       bool
}

// ResolveLevel maps a monitoring level to its polling configuration. Higher
// levels shorten the check interval and enable a superset of the level below.
func ResolveLevel(level string) (MonitoringConfig, error) {
	switch strings.ToLower(level) {
	case LevelMinimal:
		return MonitoringConfig{
			CheckInterval:       5 * time.Minute,
			ServiceHealthChecks: true,
		}, nil
	case LevelStandard:
		return MonitoringConfig{
			CheckInterval:          time.Minute,
			ServiceHealthChecks:    true,
			PerformanceTracking:    true,
			DataPipelineMonitoring: true,
			TrendAnalysis:          true,
		}, nil
	case LevelComprehensive:
		return MonitoringConfig{
			CheckInterval:          15 * time.Second,
			ServiceHealthChecks:    true,
			PerformanceTracking:    true,
			DataPipelineMonitoring: true,
			TrendAnalysis:          true,
			AutoRecovery:           true,
			PredictiveAlerts:       true,
		}, nil
	default:
		return MonitoringConfig{}, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
}

// EnabledFlags returns the set of enabled feature flag names, used by tests to
// assert the superset relation between levels.
func (m MonitoringConfig) EnabledFlags() map[string]bool {
	flags := make(map[string]bool)
	if m.PerformanceTracking {
		flags["performanceTracking"] = true
	}
	if m.DataPipelineMonitoring {
		flags["dataPipelineMonitoring"] = true
	}
	if m.ServiceHealthChecks {
		flags["serviceHealthChecks"] = true
	}
	if m.AutoRecovery {
		flags["autoRecovery"] = true
	}
	if m.TrendAnalysis {
		flags["trendAnalysis"] = true
	}
	if m.PredictiveAlerts {
		flags["predictiveAlerts"] = true
	}
	return flags
}

// Config captures the settings required to boot the reliability monitor.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Monitoring   MonitoringSection  `yaml:"monitoring"`
	Settings     SettingsConfig     `yaml:"settings"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// OrchestratorConfig configures access to the reliability report producer.
type OrchestratorConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	ReportPath     string        `yaml:"reportPath"`
	InitializePath string        `yaml:"initializePath"`
	Timeout        time.Duration `yaml:"timeout"`
}

// MonitoringSection controls the polling loop behaviour.
type MonitoringSection struct {
	Level           string        `yaml:"level"`
	InitDelay       time.Duration `yaml:"initDelay"`
	Freshness       time.Duration `yaml:"freshness"`
	EscalationDelay time.Duration `yaml:"escalationDelay"`
	IncludeTraces   bool          `yaml:"includeTraces"`
	TrendWindow     int           `yaml:"trendWindow"`
}

// SettingsConfig controls the persisted settings store holding the lean-mode flag.
type SettingsConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	LeanModeKey  string        `yaml:"leanModeKey"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_RELIABILITY_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if _, err := ResolveLevel(cfg.Monitoring.Level); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8090",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			ReportPath:     "/api/v2/diagnostics/reliability",
			InitializePath: "/api/v2/diagnostics/reliability/config",
			Timeout:        10 * time.Second,
		},
		Monitoring: MonitoringSection{
			Level:           LevelStandard,
			InitDelay:       100 * time.Millisecond,
			Freshness:       30 * time.Second,
			EscalationDelay: 100 * time.Millisecond,
			TrendWindow:     50,
		},
		Settings: SettingsConfig{
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			LeanModeKey:  "monitoring.lean_mode",
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_RELIABILITY_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_ORCHESTRATOR_URL"); v != "" {
		cfg.Orchestrator.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_ORCHESTRATOR_REPORT_PATH"); v != "" {
		cfg.Orchestrator.ReportPath = v
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_ORCHESTRATOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Orchestrator.Timeout = d
		}
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_LEVEL"); v != "" {
		cfg.Monitoring.Level = v
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_FRESHNESS"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitoring.Freshness = d
		}
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_INCLUDE_TRACES"); v != "" {
		cfg.Monitoring.IncludeTraces = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_SETTINGS_ADDR"); v != "" {
		cfg.Settings.Addr = v
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_SETTINGS_USERNAME"); v != "" {
		cfg.Settings.Username = v
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_SETTINGS_PASSWORD"); v != "" {
		cfg.Settings.Password = v
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_SETTINGS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Settings.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_RELIABILITY_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}
