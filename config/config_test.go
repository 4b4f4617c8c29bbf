package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ============================================================================
// TEST: Defaults, file loading and env overrides
// ============================================================================

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if !cfg.Dex.MockMode {
		t.Error("mock mode should default to true")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"server": {"host": "127.0.0.1", "port": 9090}, "dex": {"mock_mode": false, "base_url": "https://dex.example"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Dex.MockMode {
		t.Error("file should disable mock mode")
	}
	// Untouched sections keep defaults
	if cfg.Funding.TotalFunding != 100000 {
		t.Errorf("funding default lost: %.0f", cfg.Funding.TotalFunding)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WEB_PORT", "7070")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("AUTH_ENABLED", "false")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("log level = %q, want DEBUG", cfg.Logging.Level)
	}
	if cfg.Auth.Enabled {
		t.Error("AUTH_ENABLED=false should disable auth")
	}
}

// ============================================================================
// TEST: Validation
// ============================================================================

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config with auth disabled should validate: %v", err)
	}

	cfg.Auth.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("auth without secret should be rejected")
	}

	cfg = DefaultConfig()
	cfg.Auth.Enabled = false
	cfg.Dex.MockMode = false
	if err := cfg.Validate(); err == nil {
		t.Error("real mode without base URL should be rejected")
	}

	cfg = DefaultConfig()
	cfg.Auth.Enabled = false
	cfg.Funding.TotalFunding = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero funding should be rejected")
	}
}

// ============================================================================
// TEST: Section conversions carry tuned values through
// ============================================================================

func TestSectionConversions(t *testing.T) {
	s := StrategiesConfig{MinPrice: 0.5, MaxPrice: 2.0, VolumeCycleSec: 45}
	v := s.Volume()
	if v.CycleInterval != 45*time.Second {
		t.Errorf("cycle interval = %v, want 45s", v.CycleInterval)
	}
	if v.MinPrice != 0.5 || v.MaxPrice != 2.0 {
		t.Error("price band should carry through")
	}

	d := DetectorConfig{BotThreshold: 0.9}
	a := d.Analyzer()
	if a.BotThreshold != 0.9 {
		t.Errorf("bot threshold = %.2f, want 0.9", a.BotThreshold)
	}
	if a.MinSamples == 0 {
		t.Error("unset fields should keep analyzer defaults")
	}
}
