package support

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/cropocr/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand string
	LastOutput  string
	LastStderr  string
	LastError   error

	// Test environment
	TempDir  string
	OCR      *testutil.FakeOCRServer
	savedEnv map[string]*string

	// Region server state
	HTTPServer      *httptest.Server
	LastHTTPStatus  int
	LastHTTPBody    []byte
	LastHTTPHeaders map[string]string

	// WebSocket session state
	WSConn    *websocket.Conn
	LastReply map[string]any
}

// NewTestContext creates a scenario context with its own temp directory and
// fake OCR service.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "cropocr-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	testCtx := &TestContext{
		TempDir:  tempDir,
		OCR:      testutil.StartFakeOCRServer(),
		savedEnv: map[string]*string{},
	}

	// Keep config files on the machine out of the scenario.
	testCtx.SetEnv("HOME", tempDir)
	testCtx.SetEnv("XDG_CONFIG_HOME", filepath.Join(tempDir, ".config"))
	testCtx.SetEnv("CROPOCR_OCR_API_KEY", "integration-key")
	testCtx.SetEnv("CROPOCR_OCR_BACKOFF_MS", "1")
	testCtx.SetEnv("CROPOCR_OCR_MAX_BACKOFF_MS", "2")
	return testCtx, nil
}

// SetEnv sets a process environment variable and restores it on Cleanup.
func (testCtx *TestContext) SetEnv(name, value string) {
	if _, saved := testCtx.savedEnv[name]; !saved {
		if old, ok := os.LookupEnv(name); ok {
			testCtx.savedEnv[name] = &old
		} else {
			testCtx.savedEnv[name] = nil
		}
	}
	_ = os.Setenv(name, value)
}

// Path resolves name inside the scenario's temp directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// substitute expands {tmp} and {ocr} in a step argument.
func (testCtx *TestContext) substitute(s string) string {
	return strings.NewReplacer("{tmp}", testCtx.TempDir, "{ocr}", testCtx.OCR.URL).Replace(s)
}

// Cleanup stops the servers, restores the environment and removes the temp
// directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.WSConn != nil {
		_ = testCtx.WSConn.Close()
	}
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
	}
	testCtx.OCR.Close()

	for name, old := range testCtx.savedEnv {
		var err error
		if old == nil {
			err = os.Unsetenv(name)
		} else {
			err = os.Setenv(name, *old)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}
