package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveLevelUnknown(t *testing.T) {
	if _, err := ResolveLevel("paranoid"); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel, got %v", err)
	}
	if _, err := ResolveLevel(""); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel for empty level, got %v", err)
	}
}

func TestResolveLevelIntervalMonotonic(t *testing.T) {
	minimal, err := ResolveLevel(LevelMinimal)
	if err != nil {
		t.Fatalf("minimal: %v", err)
	}
	standard, err := ResolveLevel(LevelStandard)
	if err != nil {
		t.Fatalf("standard: %v", err)
	}
	comprehensive, err := ResolveLevel(LevelComprehensive)
	if err != nil {
		t.Fatalf("comprehensive: %v", err)
	}

	if comprehensive.CheckInterval > standard.CheckInterval {
		t.Fatalf("comprehensive interval %v > standard %v", comprehensive.CheckInterval, standard.CheckInterval)
	}
	if standard.CheckInterval > minimal.CheckInterval {
		t.Fatalf("standard interval %v > minimal %v", standard.CheckInterval, minimal.CheckInterval)
	}
}

func TestResolveLevelFlagSupersets(t *testing.T) {
	minimal, _ := ResolveLevel(LevelMinimal)
	standard, _ := ResolveLevel(LevelStandard)
	comprehensive, _ := ResolveLevel(LevelComprehensive)

	assertSuperset(t, standard.EnabledFlags(), minimal.EnabledFlags(), "standard over minimal")
	assertSuperset(t, comprehensive.EnabledFlags(), standard.EnabledFlags(), "comprehensive over standard")
}

func assertSuperset(t *testing.T, super, sub map[string]bool, label string) {
	t.Helper()
	for flag := range sub {
		if !super[flag] {
			t.Fatalf("%s: missing flag %s", label, flag)
		}
	}
}

func TestResolveLevelCaseInsensitive(t *testing.T) {
	cfg, err := ResolveLevel("Comprehensive")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.PredictiveAlerts {
		t.Fatalf("expected predictive alerts enabled")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitoring.Level != LevelStandard {
		t.Fatalf("expected standard default level, got %s", cfg.Monitoring.Level)
	}
	if cfg.Monitoring.Freshness <= 0 {
		t.Fatalf("expected positive freshness window")
	}
	if cfg.Settings.LeanModeKey == "" {
		t.Fatalf("expected default lean mode key")
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("monitoring:\n  level: minimal\nserver:\n  address: \":9000\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MIRADOR_RELIABILITY_LEVEL", "comprehensive")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Fatalf("expected file override, got %s", cfg.Server.Address)
	}
	if cfg.Monitoring.Level != "comprehensive" {
		t.Fatalf("expected env to win over file, got %s", cfg.Monitoring.Level)
	}
}

func TestLoadRejectsUnknownLevel(t *testing.T) {
	t.Setenv("MIRADOR_RELIABILITY_LEVEL", "verbose")
	if _, err := Load(""); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel, got %v", err)
	}
}
