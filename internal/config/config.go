package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/cropocr/internal/layout"
	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/pipeline"
	"github.com/MeKo-Tech/cropocr/internal/textclean"
	"github.com/MeKo-Tech/cropocr/internal/utils"
)

const redacted = "********"

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	o := ocr.DefaultConfig()
	return Config{
		LogLevel:       "info",
		Verbose:        false,
		Layout:         layout.DefaultName,
		MaxImagePixels: utils.DefaultMaxPixels,
		OCR: OCRConfig{
			Backend:            o.Backend,
			Endpoint:           o.Endpoint,
			Language:           o.Language,
			TimeoutSec:         int(o.Timeout / time.Second),
			MaxAttempts:        o.MaxAttempts,
			BackoffMs:          int(o.Backoff / time.Millisecond),
			MaxBackoffMs:       int(o.MaxBackoff / time.Millisecond),
			JPEGQuality:        o.JPEGQuality,
			BreakerThreshold:   o.BreakerThreshold,
			BreakerCooldownSec: int(o.BreakerCooldown / time.Second),
		},
		Output: OutputConfig{
			Format:       pipeline.FormatTable,
			OverlayColor: pipeline.DefaultOverlayColor,
			Clean:        CleanConfig{NormalizeForm: textclean.DefaultOptions().NormalizeForm},
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
			},
		},
	}
}

// Validate checks the configuration for consistency and valid values.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" && !pipeline.ValidFormat(c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(pipeline.Formats, ", "))
	}
	if _, err := pipeline.ParseColor(c.Output.OverlayColor); err != nil {
		return err
	}
	if !textclean.ValidForm(c.Output.Clean.NormalizeForm) {
		return fmt.Errorf("invalid output.clean.normalize_form: %s (must be one of: %s)",
			c.Output.Clean.NormalizeForm, strings.Join(textclean.NormalizeForms, ", "))
	}

	validBackends := []string{ocr.BackendRemote, ocr.BackendTesseract, ocr.BackendNone}
	if !contains(validBackends, c.OCR.Backend) {
		return fmt.Errorf("invalid ocr backend: %s (must be one of: %s)", c.OCR.Backend, strings.Join(validBackends, ", "))
	}
	if err := validatePositive(c.OCR.TimeoutSec, "ocr.timeout_sec"); err != nil {
		return err
	}
	if err := validatePositive(c.OCR.MaxAttempts, "ocr.max_attempts"); err != nil {
		return err
	}
	if c.OCR.BackoffMs < 0 || c.OCR.MaxBackoffMs < 0 {
		return fmt.Errorf("invalid ocr backoff: %dms/%dms (must not be negative)", c.OCR.BackoffMs, c.OCR.MaxBackoffMs)
	}
	if c.OCR.JPEGQuality < 1 || c.OCR.JPEGQuality > 100 {
		return fmt.Errorf("invalid ocr jpeg quality: %d (must be between 1 and 100)", c.OCR.JPEGQuality)
	}
	if c.OCR.BreakerThreshold < 0 || c.OCR.BreakerCooldownSec < 0 {
		return fmt.Errorf("invalid ocr breaker settings: threshold %d, cooldown %ds", c.OCR.BreakerThreshold, c.OCR.BreakerCooldownSec)
	}

	if c.MaxImagePixels < 0 {
		return fmt.Errorf("invalid max image pixels: %d (must not be negative)", c.MaxImagePixels)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if err := validatePositive(c.Server.MaxUploadMB, "server.max_upload_mb"); err != nil {
		return err
	}
	if err := validatePositive(c.Server.TimeoutSec, "server.timeout_sec"); err != nil {
		return err
	}

	return nil
}

// ToOCRConfig converts the OCR section into the client configuration.
func (c *Config) ToOCRConfig() ocr.Config {
	return ocr.Config{
		Backend:          c.OCR.Backend,
		Endpoint:         c.OCR.Endpoint,
		Host:             c.OCR.Host,
		APIKey:           c.OCR.APIKey,
		Timeout:          time.Duration(c.OCR.TimeoutSec) * time.Second,
		MaxAttempts:      c.OCR.MaxAttempts,
		Backoff:          time.Duration(c.OCR.BackoffMs) * time.Millisecond,
		MaxBackoff:       time.Duration(c.OCR.MaxBackoffMs) * time.Millisecond,
		JPEGQuality:      c.OCR.JPEGQuality,
		BreakerThreshold: c.OCR.BreakerThreshold,
		BreakerCooldown:  time.Duration(c.OCR.BreakerCooldownSec) * time.Second,
		Language:         c.OCR.Language,
	}
}

// CleanOptions converts the output.clean section into text cleanup options.
func (c *Config) CleanOptions() textclean.Options {
	cl := c.Output.Clean
	opts := textclean.Options{
		NormalizeForm:      cl.NormalizeForm,
		CollapseWhitespace: cl.CollapseWhitespace,
		RemoveZeroWidth:    cl.RemoveZeroWidth,
		RemoveControlChars: cl.RemoveControlChars,
	}
	if opts.NormalizeForm == "" {
		opts.NormalizeForm = textclean.DefaultOptions().NormalizeForm
	}
	return opts
}

// LoadLayouts returns the built-in layouts plus those in LayoutsFile, and
// checks that the configured default layout exists.
func (c *Config) LoadLayouts() (*layout.Registry, error) {
	reg := layout.NewRegistry()
	if c.LayoutsFile != "" {
		if err := reg.LoadFile(c.LayoutsFile); err != nil {
			return nil, err
		}
	}
	if c.Layout != "" {
		if _, err := reg.Get(c.Layout); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	if c.OCR.APIKey != "" {
		c.OCR.APIKey = redacted
	}
	return c
}

// contains checks if a slice contains a specific item.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func validatePositive(value int, name string) error {
	if value <= 0 {
		return fmt.Errorf("invalid %s: %d (must be positive)", name, value)
	}
	return nil
}
