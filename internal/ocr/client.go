package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/MeKo-Tech/cropocr/internal/utils"
	"github.com/MeKo-Tech/cropocr/internal/version"
)

const (
	// DefaultEndpoint is the hosted OCR extract-text API.
	DefaultEndpoint = "https://ocr-extract-text.p.rapidapi.com/ocr"

	headerAPIKey = "x-rapidapi-key"
	headerHost   = "x-rapidapi-host"

	maxResponseBytes = 4 << 20
)

// Config configures the OCR backends.
type Config struct {
	Backend  string
	Endpoint string
	// Host is sent as the host-identifier header; defaults to the endpoint host.
	Host   string
	APIKey string

	Timeout     time.Duration // per attempt
	MaxAttempts int
	Backoff     time.Duration // first retry delay, doubled per attempt
	MaxBackoff  time.Duration
	JPEGQuality int

	BreakerThreshold int
	BreakerCooldown  time.Duration

	// Language is used by the local tesseract backend only.
	Language string
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendRemote,
		Endpoint:         DefaultEndpoint,
		Timeout:          15 * time.Second,
		MaxAttempts:      3,
		Backoff:          500 * time.Millisecond,
		MaxBackoff:       5 * time.Second,
		JPEGQuality:      90,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
		Language:         "fra+ara",
	}
}

// Client calls the remote OCR service.
type Client struct {
	cfg   Config
	http  *http.Client
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. A nil httpClient uses a default one; the
// per-attempt timeout is always applied through the request context.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ocr endpoint: %q", cfg.Endpoint)
	}
	if cfg.Host == "" {
		cfg.Host = u.Hostname()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient, sleep: sleepContext}, nil
}

// Extract sends img as a JPEG in the multipart field "image" and returns the
// "text" field of the JSON answer, or Placeholder when it is absent.
// Transport errors, 429 and 5xx answers are retried with exponential backoff.
func (c *Client) Extract(ctx context.Context, img image.Image) (Text, error) {
	payload, err := utils.EncodeJPEG(img, c.cfg.JPEGQuality)
	if err != nil {
		return Text{}, err
	}

	start := time.Now()
	var lastErr error
	lastStatus := 0
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			ocrRetriesTotal.Inc()
			delay := c.backoff(attempt - 1)
			slog.Debug("Retrying OCR request", "attempt", attempt, "delay", delay, "error", lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return Text{}, err
			}
		}

		txt, status, retry, err := c.do(ctx, payload)
		if err == nil {
			ocrCallsTotal.WithLabelValues(BackendRemote, "success").Inc()
			ocrCallDuration.WithLabelValues(BackendRemote).Observe(time.Since(start).Seconds())
			return txt, nil
		}
		lastErr, lastStatus = err, status
		if ctx.Err() != nil {
			return Text{}, ctx.Err()
		}
		if !retry {
			ocrCallsTotal.WithLabelValues(BackendRemote, "error").Inc()
			return Text{}, &RemoteServiceError{StatusCode: status, Attempts: attempt, Err: err}
		}
	}

	ocrCallsTotal.WithLabelValues(BackendRemote, "error").Inc()
	return Text{}, &RemoteServiceError{StatusCode: lastStatus, Attempts: c.cfg.MaxAttempts, Err: lastErr}
}

// do performs one attempt and reports whether a failure may be retried.
func (c *Client) do(ctx context.Context, payload []byte) (Text, int, bool, error) {
	body, contentType, err := multipartImage(payload)
	if err != nil {
		return Text{}, 0, false, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return Text{}, 0, false, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(headerAPIKey, c.cfg.APIKey)
	req.Header.Set(headerHost, c.cfg.Host)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return Text{}, 0, true, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Text{}, resp.StatusCode, true, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return Text{}, resp.StatusCode, retry, fmt.Errorf("unexpected status %s", resp.Status)
	}

	txt, err := parseResponse(raw)
	return txt, resp.StatusCode, false, err
}

func parseResponse(raw []byte) (Text, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Text{}, fmt.Errorf("invalid response body: %w", err)
	}
	if s, ok := doc["text"].(string); ok {
		return Text{Value: s, Found: true, Source: SourceRemote}, nil
	}
	return Text{Value: Placeholder, Source: SourceRemote}, nil
}

func multipartImage(payload []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "crop.jpg")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func (c *Client) backoff(retry int) time.Duration {
	d := c.cfg.Backoff
	for i := 1; i < retry && (c.cfg.MaxBackoff <= 0 || d < c.cfg.MaxBackoff); i++ {
		d *= 2
	}
	if c.cfg.MaxBackoff > 0 && d > c.cfg.MaxBackoff {
		d = c.cfg.MaxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsRemoteError reports whether err came from the OCR service.
func IsRemoteError(err error) bool {
	var rerr *RemoteServiceError
	return errors.As(err, &rerr)
}
