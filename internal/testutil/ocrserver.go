package testutil

import (
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// OCRRequest is a request received by the fake OCR service.
type OCRRequest struct {
	APIKey string
	Host   string
	Image  image.Image
}

// OCRReply is a scripted answer of the fake OCR service. A zero Status means 200.
// A nil Text omits the "text" field.
type OCRReply struct {
	Status int
	Text   *string
	Body   string
}

// Text returns a successful reply carrying s.
func Text(s string) OCRReply { return OCRReply{Text: &s} }

// FakeOCRServer is an httptest server that speaks the OCR service protocol.
// Replies are served in order; once exhausted the last reply repeats.
type FakeOCRServer struct {
	*httptest.Server

	mu       sync.Mutex
	replies  []OCRReply
	requests []OCRRequest
}

// NewFakeOCRServer starts a fake OCR service closed at test cleanup.
func NewFakeOCRServer(t *testing.T, replies ...OCRReply) *FakeOCRServer {
	t.Helper()
	f := StartFakeOCRServer(replies...)
	t.Cleanup(f.Close)
	return f
}

// StartFakeOCRServer starts a fake OCR service; the caller must Close it.
func StartFakeOCRServer(replies ...OCRReply) *FakeOCRServer {
	f := &FakeOCRServer{replies: replies}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// SetReplies replaces the scripted replies.
func (f *FakeOCRServer) SetReplies(replies ...OCRReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = replies
}

// Reset forgets the received requests.
func (f *FakeOCRServer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}

// Requests returns the received requests.
func (f *FakeOCRServer) Requests() []OCRRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OCRRequest(nil), f.requests...)
}

func (f *FakeOCRServer) handle(w http.ResponseWriter, r *http.Request) {
	req := OCRRequest{
		APIKey: r.Header.Get("x-rapidapi-key"),
		Host:   r.Header.Get("x-rapidapi-host"),
	}
	if file, _, err := r.FormFile("image"); err == nil {
		req.Image, _ = jpeg.Decode(file)
		_ = file.Close()
	}

	f.mu.Lock()
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	var reply OCRReply
	if n := len(f.replies); n > 0 {
		reply = f.replies[min(idx, n-1)]
	}
	f.mu.Unlock()

	if req.Image == nil && reply.Status == 0 {
		http.Error(w, `{"error":"image is required"}`, http.StatusBadRequest)
		return
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if reply.Body != "" {
		_, _ = w.Write([]byte(reply.Body))
		return
	}
	body := map[string]any{}
	if reply.Text != nil {
		body["text"] = *reply.Text
	}
	_ = json.NewEncoder(w).Encode(body)
}
