package config

import (
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/cropocr/internal/layout"
	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/textclean"
)

const (
	infoLevel  = "info"
	debugLevel = "debug"
)

// TestDefaultConfig verifies that DefaultConfig returns expected values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected log_level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Layout != layout.Points3 {
		t.Errorf("Expected layout %s, got %s", layout.Points3, cfg.Layout)
	}
	if cfg.OCR.Backend != ocr.BackendRemote {
		t.Errorf("Expected backend remote, got %s", cfg.OCR.Backend)
	}
	if cfg.OCR.Endpoint != ocr.DefaultEndpoint {
		t.Errorf("Expected endpoint %s, got %s", ocr.DefaultEndpoint, cfg.OCR.Endpoint)
	}
	if cfg.OCR.TimeoutSec != 15 {
		t.Errorf("Expected timeout 15, got %d", cfg.OCR.TimeoutSec)
	}
	if cfg.OCR.MaxAttempts != 3 {
		t.Errorf("Expected max attempts 3, got %d", cfg.OCR.MaxAttempts)
	}
	if cfg.OCR.BackoffMs != 500 || cfg.OCR.MaxBackoffMs != 5000 {
		t.Errorf("Expected backoff 500/5000, got %d/%d", cfg.OCR.BackoffMs, cfg.OCR.MaxBackoffMs)
	}
	if cfg.Output.Format != "table" {
		t.Errorf("Expected output format 'table', got %s", cfg.Output.Format)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit.Enabled {
		t.Error("Expected rate limiting disabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

// TestValidate covers each validation rule.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"empty format ok", func(c *Config) { c.Output.Format = "" }, ""},
		{"bad color", func(c *Config) { c.Output.OverlayColor = "#zzz" }, "invalid overlay color"},
		{"bad normalize form", func(c *Config) { c.Output.Clean.NormalizeForm = "NFX" }, "output.clean.normalize_form"},
		{"normalize disabled", func(c *Config) { c.Output.Clean.NormalizeForm = "none" }, ""},
		{"bad backend", func(c *Config) { c.OCR.Backend = "magic" }, "invalid ocr backend"},
		{"none backend", func(c *Config) { c.OCR.Backend = ocr.BackendNone }, ""},
		{"zero timeout", func(c *Config) { c.OCR.TimeoutSec = 0 }, "ocr.timeout_sec"},
		{"zero attempts", func(c *Config) { c.OCR.MaxAttempts = 0 }, "ocr.max_attempts"},
		{"negative backoff", func(c *Config) { c.OCR.BackoffMs = -1 }, "invalid ocr backoff"},
		{"jpeg quality", func(c *Config) { c.OCR.JPEGQuality = 101 }, "jpeg quality"},
		{"breaker", func(c *Config) { c.OCR.BreakerThreshold = -1 }, "breaker"},
		{"breaker disabled", func(c *Config) { c.OCR.BreakerThreshold = 0 }, ""},
		{"pixels", func(c *Config) { c.MaxImagePixels = -5 }, "max image pixels"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "server.max_upload_mb"},
		{"server timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "server.timeout_sec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

// TestCleanOptions maps the output.clean section onto textclean options.
func TestCleanOptions(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.CleanOptions(); got != textclean.DefaultOptions() {
		t.Errorf("CleanOptions() = %+v, want defaults", got)
	}

	cfg.Output.Clean = CleanConfig{CollapseWhitespace: true, RemoveZeroWidth: true, RemoveControlChars: true}
	want := textclean.Options{
		NormalizeForm:      "NFC",
		CollapseWhitespace: true,
		RemoveZeroWidth:    true,
		RemoveControlChars: true,
	}
	if got := cfg.CleanOptions(); got != want {
		t.Errorf("CleanOptions() = %+v, want %+v", got, want)
	}
}

// TestToOCRConfig checks unit conversion into the client configuration.
func TestToOCRConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OCR.APIKey = "secret"
	cfg.OCR.Host = "ocr.example.test"
	cfg.OCR.TimeoutSec = 7
	cfg.OCR.BackoffMs = 250
	cfg.OCR.MaxBackoffMs = 1000
	cfg.OCR.BreakerCooldownSec = 12

	oc := cfg.ToOCRConfig()
	if oc.APIKey != "secret" || oc.Host != "ocr.example.test" {
		t.Errorf("Unexpected credentials: %+v", oc)
	}
	if oc.Timeout != 7*time.Second {
		t.Errorf("Expected 7s timeout, got %v", oc.Timeout)
	}
	if oc.Backoff != 250*time.Millisecond || oc.MaxBackoff != time.Second {
		t.Errorf("Unexpected backoff %v/%v", oc.Backoff, oc.MaxBackoff)
	}
	if oc.BreakerCooldown != 12*time.Second {
		t.Errorf("Expected 12s cooldown, got %v", oc.BreakerCooldown)
	}
	if oc.BreakerThreshold != 5 || oc.MaxAttempts != 3 || oc.JPEGQuality != 90 {
		t.Errorf("Unexpected defaults carried over: %+v", oc)
	}
}

// TestDefaultsMatchOCRDefaults keeps both default sets in sync.
func TestDefaultsMatchOCRDefaults(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.ToOCRConfig()
	want := ocr.DefaultConfig()
	if got != want {
		t.Errorf("ToOCRConfig(DefaultConfig()) = %+v, want %+v", got, want)
	}
}

// TestLoadLayouts checks the default layout lookup.
func TestLoadLayouts(t *testing.T) {
	cfg := DefaultConfig()
	reg, err := cfg.LoadLayouts()
	if err != nil {
		t.Fatalf("LoadLayouts() unexpected error: %v", err)
	}
	if len(reg.Names()) != 3 {
		t.Errorf("Expected 3 built-in layouts, got %v", reg.Names())
	}

	cfg.Layout = "missing"
	if _, err := cfg.LoadLayouts(); err == nil {
		t.Error("Expected error for unknown default layout")
	}

	cfg.Layout = ""
	cfg.LayoutsFile = "/does/not/exist.yaml"
	if _, err := cfg.LoadLayouts(); err == nil {
		t.Error("Expected error for missing layouts file")
	}
}

// TestRedacted masks the API key without touching the original.
func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OCR.APIKey = "secret"
	r := cfg.Redacted()
	if r.OCR.APIKey == "secret" {
		t.Error("Expected API key to be masked")
	}
	if cfg.OCR.APIKey != "secret" {
		t.Error("Redacted() must not modify the receiver")
	}
	if DefaultConfig().Redacted().OCR.APIKey != "" {
		t.Error("Empty API key should stay empty")
	}
}
