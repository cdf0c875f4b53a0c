package cmd

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cropocr/internal/config"
)

func TestServeCommandFlags(t *testing.T) {
	cmd := newServeCommand(&app{})
	for _, name := range []string{
		"host", "port", "cors-origin", "max-upload-size", "timeout", "shutdown-timeout",
		"rate-limit-enabled", "requests-per-minute", "requests-per-hour",
		"max-requests-per-day", "max-data-per-day", "ocr-backend", "ocr-endpoint",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestApplyServeFlags_OnlyChanged(t *testing.T) {
	cmd := newServeCommand(&app{})
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9000", "--rate-limit-enabled", "--max-data-per-day", "5"}))

	s := config.DefaultConfig().Server
	s.Host = "0.0.0.0"
	applyServeFlags(cmd, &s)

	assert.Equal(t, 9000, s.Port)
	assert.Equal(t, "0.0.0.0", s.Host, "unset flags keep the configured value")
	assert.True(t, s.RateLimit.Enabled)
	assert.Equal(t, int64(5), s.RateLimit.MaxDataPerDayMB)
	assert.Equal(t, 60, s.RateLimit.RequestsPerMinute)
}

func TestBuildServerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OCR.Backend = "none"
	cfg.Layout = "rect2"
	cfg.Server.RateLimit.MaxDataPerDayMB = 2
	cfg.Output.Clean.RemoveControlChars = true

	sc, err := buildServerConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "rect2", sc.DefaultLayout)
	assert.Equal(t, int64(2*1024*1024), sc.RateLimit.MaxDataPerDay)
	assert.Equal(t, int64(20), sc.MaxUploadMB)
	assert.Nil(t, sc.Extractor)
	assert.True(t, sc.CleanOptions.RemoveControlChars)
	assert.Equal(t, "NFC", sc.CleanOptions.NormalizeForm)
	require.NotNil(t, sc.Layouts)
	_, err = sc.Layouts.Get("points1")
	require.NoError(t, err)
}

func TestBuildServerConfig_UnknownLayout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Layout = "bogus"
	_, err := buildServerConfig(&cfg)
	require.Error(t, err)
}

func TestServeCommand_InvalidPort(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}

func TestRunHTTPServer_ShutsDownOnCancel(t *testing.T) {
	httpServer := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux(), ReadHeaderTimeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runHTTPServer(ctx, httpServer, time.Second) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunHTTPServer_ListenError(t *testing.T) {
	httpServer := &http.Server{Addr: "256.0.0.1:bad", ReadHeaderTimeout: time.Second}
	err := runHTTPServer(context.Background(), httpServer, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}
