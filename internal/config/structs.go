//nolint:lll
package config

// Config represents the complete configuration for the cropocr application.
// It includes settings for all commands (extract, preview, canvas, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Layout selection
	Layout      string `mapstructure:"layout" yaml:"layout" json:"layout"`
	LayoutsFile string `mapstructure:"layouts_file" yaml:"layouts_file" json:"layouts_file"`

	// Upper bound on decoded image size
	MaxImagePixels int `mapstructure:"max_image_pixels" yaml:"max_image_pixels" json:"max_image_pixels"`

	// OCR backend configuration
	OCR OCRConfig `mapstructure:"ocr" yaml:"ocr" json:"ocr"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// OCRConfig contains OCR service settings.
type OCRConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend" json:"backend"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	Host     string `mapstructure:"host" yaml:"host" json:"host"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	Language string `mapstructure:"language" yaml:"language" json:"language"`

	// Retry and timeout
	TimeoutSec   int `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	MaxAttempts  int `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	BackoffMs    int `mapstructure:"backoff_ms" yaml:"backoff_ms" json:"backoff_ms"`
	MaxBackoffMs int `mapstructure:"max_backoff_ms" yaml:"max_backoff_ms" json:"max_backoff_ms"`

	// Encoding of crops sent to the service
	JPEGQuality int `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`

	// Circuit breaker
	BreakerThreshold   int `mapstructure:"breaker_threshold" yaml:"breaker_threshold" json:"breaker_threshold"`
	BreakerCooldownSec int `mapstructure:"breaker_cooldown_sec" yaml:"breaker_cooldown_sec" json:"breaker_cooldown_sec"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	File         string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayColor string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
	CropsDir     string `mapstructure:"crops_dir" yaml:"crops_dir" json:"crops_dir"`

	// Post-processing of OCR text after boilerplate removal
	Clean CleanConfig `mapstructure:"clean" yaml:"clean" json:"clean"`
}

// CleanConfig controls text cleanup beyond token removal.
type CleanConfig struct {
	NormalizeForm      string `mapstructure:"normalize_form" yaml:"normalize_form" json:"normalize_form"`
	CollapseWhitespace bool   `mapstructure:"collapse_whitespace" yaml:"collapse_whitespace" json:"collapse_whitespace"`
	RemoveZeroWidth    bool   `mapstructure:"remove_zero_width" yaml:"remove_zero_width" json:"remove_zero_width"`
	RemoveControlChars bool   `mapstructure:"remove_control_chars" yaml:"remove_control_chars" json:"remove_control_chars"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}
