package support

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/cropocr/internal/config"
	"github.com/MeKo-Tech/cropocr/internal/layout"
	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/server"
)

const wsReplyTimeout = 10 * time.Second

// startRegionServer runs the region server against the fake OCR service.
func (testCtx *TestContext) startRegionServer(mutate func(*server.Config)) error {
	cfg := config.DefaultConfig()
	cfg.OCR.Endpoint = testCtx.OCR.URL
	cfg.OCR.APIKey = "integration-key"
	cfg.OCR.BackoffMs = 1
	cfg.OCR.MaxBackoffMs = 2
	extractor, err := ocr.New(cfg.ToOCRConfig())
	if err != nil {
		return err
	}

	sc := server.Config{
		CORSOrigin:    "*",
		MaxUploadMB:   5,
		TimeoutSec:    10,
		Layouts:       layout.NewRegistry(),
		DefaultLayout: layout.DefaultName,
		Extractor:     extractor,
	}
	if mutate != nil {
		mutate(&sc)
	}
	srv, err := server.NewServer(sc)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
	}
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

func (testCtx *TestContext) theRegionServerIsRunning() error {
	return testCtx.startRegionServer(nil)
}

func (testCtx *TestContext) theRegionServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.startRegionServer(func(c *server.Config) {
		c.RateLimit = server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute}
	})
}

func (testCtx *TestContext) record(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatus = resp.StatusCode
	testCtx.LastHTTPBody = body
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	resp, err := http.Get(testCtx.HTTPServer.URL + path) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

// iUpload posts the image with optional form fields given as key=value pairs
// separated by "&". Values naming a file in the temp directory are read from it.
func (testCtx *TestContext) iUpload(imageName, path, fields string) error {
	data, err := os.ReadFile(testCtx.Path(imageName))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", imageName)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for _, kv := range strings.Split(fields, "&") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if content, err := os.ReadFile(testCtx.Path(value)); err == nil {
			value = string(content)
		}
		if err := w.WriteField(key, value); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.HTTPServer.URL+path, w.FormDataContentType(), &body) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

func (testCtx *TestContext) iUploadWithoutFields(imageName, path string) error {
	return testCtx.iUpload(imageName, path, "")
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatus != status {
		return fmt.Errorf("status %d, want %d\nBody: %s", testCtx.LastHTTPStatus, status, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(testCtx.LastHTTPBody), text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

// lookup walks a dotted path through decoded JSON.
func lookup(doc any, path string) (any, error) {
	cur := doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot navigate into non-object at '%s'", part)
		}
		if cur, ok = m[part]; !ok {
			return nil, fmt.Errorf("field '%s' not found", path)
		}
	}
	return cur, nil
}

func (testCtx *TestContext) theResponseFieldShouldBe(field, want string) error {
	var doc any
	if err := json.Unmarshal(testCtx.LastHTTPBody, &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	got, err := lookup(doc, field)
	if err != nil {
		return err
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("field %s is %v, want %s", field, got, want)
	}
	return nil
}

// values extracts result.fields[].text from a decoded result.
func values(result any) ([]string, error) {
	fields, err := lookup(result, "fields")
	if err != nil {
		return nil, err
	}
	list, ok := fields.([]any)
	if !ok {
		return nil, fmt.Errorf("fields is not a list")
	}
	out := make([]string, 0, len(list))
	for _, f := range list {
		text, err := lookup(f, "text")
		if err != nil {
			return nil, err
		}
		out = append(out, fmt.Sprint(text))
	}
	return out, nil
}

func sameValues(got []string, want string) error {
	expected := strings.Split(want, ",")
	for i := range expected {
		expected[i] = strings.TrimSpace(expected[i])
	}
	if strings.Join(got, "|") != strings.Join(expected, "|") {
		return fmt.Errorf("values %q, want %q", got, expected)
	}
	return nil
}

func (testCtx *TestContext) theExtractedValuesShouldBe(want string) error {
	var doc map[string]any
	if err := json.Unmarshal(testCtx.LastHTTPBody, &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	got, err := values(doc["result"])
	if err != nil {
		return err
	}
	return sameValues(got, want)
}

// iOpenASessionWith dials the WebSocket endpoint and starts a session.
func (testCtx *TestContext) iOpenASessionWith(imageName, layoutName string) error {
	data, err := os.ReadFile(testCtx.Path(imageName))
	if err != nil {
		return err
	}
	url := "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws/regions"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	testCtx.WSConn = conn
	return testCtx.send(server.WebSocketRequest{
		Type:   "session",
		Image:  base64.StdEncoding.EncodeToString(data),
		Layout: layoutName,
	})
}

// iSendTheAnnotations sends a canvas for evaluation in the open session.
func (testCtx *TestContext) iSendTheAnnotations(name string) error {
	canvas, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return err
	}
	return testCtx.send(server.WebSocketRequest{Type: "annotations", Canvas: canvas, RequestID: name})
}

func (testCtx *TestContext) send(req server.WebSocketRequest) error {
	if testCtx.WSConn == nil {
		return fmt.Errorf("no websocket session")
	}
	if err := testCtx.WSConn.WriteJSON(req); err != nil {
		return err
	}
	_ = testCtx.WSConn.SetReadDeadline(time.Now().Add(wsReplyTimeout))
	testCtx.LastReply = nil
	return testCtx.WSConn.ReadJSON(&testCtx.LastReply)
}

func (testCtx *TestContext) theReplyShouldBe(typ, status string) error {
	if testCtx.LastReply["type"] != typ || testCtx.LastReply["status"] != status {
		return fmt.Errorf("reply %v, want type %s status %s", testCtx.LastReply, typ, status)
	}
	return nil
}

func (testCtx *TestContext) theReplyErrorTypeShouldBe(errType string) error {
	if testCtx.LastReply["error_type"] != errType {
		return fmt.Errorf("reply error_type %v, want %s (%v)", testCtx.LastReply["error_type"], errType, testCtx.LastReply)
	}
	return nil
}

func (testCtx *TestContext) theReplyValuesShouldBe(want string) error {
	got, err := values(testCtx.LastReply["result"])
	if err != nil {
		return err
	}
	return sameValues(got, want)
}

// RegisterServerSteps registers the HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the region server is running$`, testCtx.theRegionServerIsRunning)
	sc.Step(`^the region server is running with a limit of (\d+) requests per minute$`,
		testCtx.theRegionServerIsRunningWithRateLimit)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with "([^"]*)"$`, testCtx.iUpload)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadWithoutFields)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the extracted values should be "([^"]*)"$`, testCtx.theExtractedValuesShouldBe)

	sc.Step(`^I open a region session with "([^"]*)" and layout "([^"]*)"$`, testCtx.iOpenASessionWith)
	sc.Step(`^I send the annotations "([^"]*)"$`, testCtx.iSendTheAnnotations)
	sc.Step(`^the reply should be "([^"]*)" with status "([^"]*)"$`, testCtx.theReplyShouldBe)
	sc.Step(`^the reply error type should be "([^"]*)"$`, testCtx.theReplyErrorTypeShouldBe)
	sc.Step(`^the reply values should be "([^"]*)"$`, testCtx.theReplyValuesShouldBe)
}
