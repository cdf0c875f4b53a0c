package server

import (
	"fmt"
	"image/color"
	"net/http"

	"github.com/MeKo-Tech/cropocr/internal/layout"
	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/pipeline"
	"github.com/MeKo-Tech/cropocr/internal/textclean"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline      *pipeline.Pipeline
	profiler      *pipeline.Profiler
	layouts       *layout.Registry
	defaultLayout string
	corsOrigin    string
	maxUploadMB   int64
	maxPixels     int
	timeoutSec    int
	overlayColor  color.Color
	rateLimiter   *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	MaxImagePixels int
	TimeoutSec     int

	// Layouts defaults to the built-in registry when nil.
	Layouts       *layout.Registry
	DefaultLayout string

	// Extractor may be nil, in which case every field gets the placeholder.
	Extractor    ocr.Extractor
	CleanOptions textclean.Options
	OverlayColor string

	RateLimit RateLimitConfig
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Time    string         `json:"time"`
	Stats   map[string]any `json:"stats,omitempty"`
}

// LayoutInfo describes one layout for /layouts.
type LayoutInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Mode        string   `json:"mode"`
	RegionSize  int      `json:"region_size"`
	Regions     int      `json:"regions"`
	Annotations int      `json:"annotations"`
	Canvas      *Size    `json:"canvas,omitempty"`
	CropOnly    bool     `json:"crop_only,omitempty"`
	Fields      []string `json:"fields"`
}

// Size is a width/height pair.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// LayoutsResponse is returned by /layouts.
type LayoutsResponse struct {
	Layouts []LayoutInfo `json:"layouts"`
	Count   int          `json:"count"`
	Default string       `json:"default"`
}

// ExtractResponse is the JSON body of /regions/extract, also used for errors.
type ExtractResponse struct {
	Success   bool             `json:"success"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
}

// NewServer creates a new region OCR server instance.
func NewServer(config Config) (*Server, error) {
	layouts := config.Layouts
	if layouts == nil {
		layouts = layout.NewRegistry()
	}
	defaultLayout := config.DefaultLayout
	if defaultLayout == "" {
		defaultLayout = layout.DefaultName
	}
	if _, err := layouts.Get(defaultLayout); err != nil {
		return nil, fmt.Errorf("default layout: %w", err)
	}

	overlay, err := pipeline.ParseColor(config.OverlayColor)
	if err != nil {
		return nil, err
	}

	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 20
	}

	profiler := &pipeline.Profiler{}
	clean := config.CleanOptions
	if clean == (textclean.Options{}) {
		clean = textclean.DefaultOptions()
	}
	pl := pipeline.NewBuilder().
		WithExtractor(config.Extractor).
		WithCleanOptions(clean).
		WithProfiler(profiler).
		Build()

	s := &Server{
		pipeline:      pl,
		profiler:      profiler,
		layouts:       layouts,
		defaultLayout: defaultLayout,
		corsOrigin:    config.CORSOrigin,
		maxUploadMB:   maxUpload,
		maxPixels:     config.MaxImagePixels,
		timeoutSec:    config.TimeoutSec,
		overlayColor:  overlay,
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/layouts", s.corsMiddleware(s.layoutsHandler))
	mux.HandleFunc("/regions/extract", s.corsMiddleware(s.rateLimitMiddleware(s.extractHandler)))
	mux.HandleFunc("/regions/preview", s.corsMiddleware(s.rateLimitMiddleware(s.previewHandler)))
	mux.HandleFunc("/canvas", s.corsMiddleware(s.rateLimitMiddleware(s.canvasHandler)))
	mux.HandleFunc("/ws/regions", s.rateLimitMiddleware(s.regionsWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}
