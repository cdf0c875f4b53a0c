package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/testutil"
)

// scriptedExtractor answers OCR calls with texts in order, then the placeholder.
type scriptedExtractor struct {
	mu    sync.Mutex
	texts []string
	calls int
	err   error
}

func (m *scriptedExtractor) Extract(_ context.Context, _ image.Image) (ocr.Text, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if m.err != nil {
		return ocr.Text{}, m.err
	}
	if i >= len(m.texts) {
		return ocr.Text{Value: ocr.Placeholder, Source: ocr.SourceRemote}, nil
	}
	return ocr.Text{Value: m.texts[i], Found: true, Source: ocr.SourceRemote}, nil
}

func (m *scriptedExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// newTestServer builds a server around ex with default settings.
func newTestServer(t *testing.T, ex ocr.Extractor, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  5,
		Extractor:   ex,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

// testImagePNG is a 1000x600 image, twice the points3 canvas.
func testImagePNG(t *testing.T) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.QuadrantImage(1000, 600))
}

// createMultipartFormRequest creates a multipart form request with an image.
func createMultipartFormRequest(t *testing.T, path string, imageData []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if imageData != nil {
		part, err := writer.CreateFormFile("image", "upload.png")
		require.NoError(t, err)
		_, err = part.Write(imageData)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeExtractResponse(t *testing.T, w *httptest.ResponseRecorder) ExtractResponse {
	t.Helper()
	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
