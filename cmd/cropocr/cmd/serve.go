package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cropocr/internal/config"
	"github.com/MeKo-Tech/cropocr/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the region OCR API",
		Long: `Start an HTTP server that provides REST and WebSocket endpoints for region OCR.

The server provides the following endpoints:
  POST /regions/extract - Crop and OCR annotated regions of an uploaded image
  POST /regions/preview - Render the mapped regions as a PNG overlay
  POST /canvas          - Return the display canvas for an uploaded image
  GET  /ws/regions      - Interactive session: re-evaluate on every canvas change
  GET  /layouts         - List available layouts
  GET  /health          - Health check endpoint
  GET  /metrics         - Prometheus metrics

Examples:
  cropocr serve
  cropocr serve --port 8080
  cropocr serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			applyServeFlags(cmd, &cfg.Server)
			cfg.OCR.Backend = flagOr(cmd, "ocr-backend", cfg.OCR.Backend)
			cfg.OCR.Endpoint = flagOr(cmd, "ocr-endpoint", cfg.OCR.Endpoint)

			if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
				return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
			}

			serverConfig, err := buildServerConfig(cfg)
			if err != nil {
				return err
			}
			regionServer, err := server.NewServer(serverConfig)
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			mux := http.NewServeMux()
			regionServer.SetupRoutes(mux)

			timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
			httpServer := &http.Server{
				Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       timeout,
				WriteTimeout:      timeout + 5*time.Second,
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()
			return runHTTPServer(ctx, httpServer, time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		},
	}

	cmd.Flags().StringP("host", "H", "localhost", "server host")
	cmd.Flags().IntP("port", "p", 8080, "server port")
	cmd.Flags().String("cors-origin", "*", "CORS allowed origin")
	cmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	cmd.Flags().Int("timeout", 60, "request timeout in seconds")
	cmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags
	cmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	cmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	cmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	cmd.Flags().Int("max-requests-per-day", 0, "maximum requests per day per client (0 = unlimited)")
	cmd.Flags().Int64("max-data-per-day", 0, "maximum upload volume per day per client in MB (0 = unlimited)")
	cmd.Flags().String("ocr-backend", "remote", "OCR backend (remote, tesseract, none)")
	cmd.Flags().String("ocr-endpoint", "", "OCR service endpoint URL")
	return cmd
}

// applyServeFlags overrides the server section with explicitly set flags.
func applyServeFlags(cmd *cobra.Command, s *config.ServerConfig) {
	f := cmd.Flags()
	if f.Changed("host") {
		s.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		s.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		s.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		s.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		s.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("rate-limit-enabled") {
		s.RateLimit.Enabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		s.RateLimit.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		s.RateLimit.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("max-requests-per-day") {
		s.RateLimit.MaxRequestsPerDay, _ = f.GetInt("max-requests-per-day")
	}
	if f.Changed("max-data-per-day") {
		s.RateLimit.MaxDataPerDayMB, _ = f.GetInt64("max-data-per-day")
	}
}

// buildServerConfig turns the loaded configuration into server settings,
// including the OCR backend and layouts.
func buildServerConfig(cfg *config.Config) (server.Config, error) {
	layouts, err := cfg.LoadLayouts()
	if err != nil {
		return server.Config{}, err
	}
	extractor, err := newExtractor(cfg)
	if err != nil {
		return server.Config{}, err
	}
	rl := cfg.Server.RateLimit
	return server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigin:     cfg.Server.CORSOrigin,
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		MaxImagePixels: cfg.MaxImagePixels,
		TimeoutSec:     cfg.Server.TimeoutSec,
		Layouts:        layouts,
		DefaultLayout:  cfg.Layout,
		Extractor:      extractor,
		OverlayColor:   cfg.Output.OverlayColor,
		CleanOptions:   cfg.CleanOptions(),
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDay:     rl.MaxDataPerDayMB * 1024 * 1024,
		},
	}, nil
}

// runHTTPServer serves until ctx is cancelled or the listener fails, then
// shuts down gracefully.
func runHTTPServer(ctx context.Context, httpServer *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting region OCR server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
