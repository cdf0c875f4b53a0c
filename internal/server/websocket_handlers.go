package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/cropocr/internal/pipeline"
	"github.com/MeKo-Tech/cropocr/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// Message types exchanged on /ws/regions.
const (
	wsTypeSession     = "session"
	wsTypeAnnotations = "annotations"
	wsTypeResult      = "result"
	wsTypeError       = "error"
)

// WebSocketRequest is a client message. A "session" message uploads the
// image (base64) and picks the layout; each following "annotations" message
// carries the current canvas state and is evaluated against that session.
type WebSocketRequest struct {
	Type      string          `json:"type"`
	Image     string          `json:"image,omitempty"`
	Layout    string          `json:"layout,omitempty"`
	Canvas    json.RawMessage `json:"canvas,omitempty"`
	Format    string          `json:"format,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// SessionInfo describes an established session. Display holds the canvas
// image as base64 JPEG.
type SessionInfo struct {
	Layout       string   `json:"layout"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	CanvasWidth  int      `json:"canvas_width"`
	CanvasHeight int      `json:"canvas_height"`
	Annotations  int      `json:"annotations"`
	Fields       []string `json:"fields"`
	Display      string   `json:"display,omitempty"`
}

// WebSocketResponse is a server message.
type WebSocketResponse struct {
	Type      string           `json:"type"`
	Status    string           `json:"status"` // "ready", "completed", "error"
	Session   *SessionInfo     `json:"session,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Rendered  string           `json:"rendered,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// regionsWebSocketHandler runs the interactive re-evaluation loop: one
// session per connection, one pipeline run per annotations message.
func (s *Server) regionsWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024 * 2)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	ws := &wsSession{server: s, conn: conn, request: r}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType == websocket.TextMessage {
			ws.handleMessage(data)
		}
	}
}

// checkOrigin accepts any origin when CORS is open, otherwise only the
// configured one.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return s.corsOrigin == "" || s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
}

// wsSession is the per-connection state.
type wsSession struct {
	server  *Server
	conn    WebSocketConnWriter
	request *http.Request
	session *pipeline.Session
}

func (ws *wsSession) handleMessage(data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		ws.sendError("", errorTypeInvalidRequest, "Invalid message format")
		return
	}

	switch req.Type {
	case wsTypeSession:
		ws.startSession(req)
	case wsTypeAnnotations:
		ws.evaluate(req)
	default:
		ws.sendError(req.RequestID, errorTypeInvalidRequest, fmt.Sprintf("Unknown message type: %s", req.Type))
	}
}

func (ws *wsSession) startSession(req WebSocketRequest) {
	s := ws.server
	if req.Image == "" {
		ws.sendError(req.RequestID, errorTypeInvalidRequest, "No image data provided")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		ws.sendError(req.RequestID, errorTypeImageDecode, "Image is not valid base64")
		return
	}
	uploadSizeBytes.Observe(float64(len(raw)))

	img, _, err := utils.DecodeImage(raw, s.maxPixels)
	if err != nil {
		ws.sendErr(req.RequestID, err)
		return
	}
	name := req.Layout
	if name == "" {
		name = s.defaultLayout
	}
	l, err := s.layouts.Get(name)
	if err != nil {
		ws.sendErr(req.RequestID, err)
		return
	}
	session, err := pipeline.NewSession(img, l)
	if err != nil {
		ws.sendErr(req.RequestID, err)
		return
	}

	info := &SessionInfo{
		Layout:       l.Name,
		Width:        session.Width(),
		Height:       session.Height(),
		CanvasWidth:  session.CanvasWidth,
		CanvasHeight: session.CanvasHeight,
		Annotations:  l.ExpectedAnnotations(),
		Fields:       l.FieldNames(),
	}
	if display, err := session.Display(); err == nil {
		if jpg, err := utils.EncodeJPEG(display, canvasJPEGQuality); err == nil {
			info.Display = base64.StdEncoding.EncodeToString(jpg)
		}
	}

	ws.session = session
	slog.Debug("WebSocket session started", "layout", l.Name, "width", info.Width, "height", info.Height)
	ws.send(WebSocketResponse{
		Type:      wsTypeSession,
		Status:    "ready",
		Session:   info,
		RequestID: req.RequestID,
	})
}

func (ws *wsSession) evaluate(req WebSocketRequest) {
	s := ws.server
	if ws.session == nil {
		ws.sendError(req.RequestID, errorTypeInvalidRequest, "No session; send a session message first")
		return
	}
	format := req.Format
	if format == "" {
		format = pipeline.FormatJSON
	}
	if !pipeline.ValidFormat(format) {
		ws.sendError(req.RequestID, errorTypeInvalidRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	ctx, cancel := s.requestContext(ws.request.Context())
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.RunCanvas(ctx, ws.session, req.Canvas)
	if err != nil {
		regionRequestsTotal.WithLabelValues("websocket", "error").Inc()
		ws.sendErr(req.RequestID, err)
		return
	}
	regionRequestsTotal.WithLabelValues("websocket", "success").Inc()
	regionProcessingDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())
	observeResult("websocket", res)

	resp := WebSocketResponse{
		Type:      wsTypeResult,
		Status:    "completed",
		Result:    res,
		RequestID: req.RequestID,
	}
	if format != pipeline.FormatJSON {
		out, err := pipeline.Render(res, format)
		if err != nil {
			ws.sendErr(req.RequestID, err)
			return
		}
		resp.Rendered = out
	}
	ws.send(resp)
}

// sendErr reports a pipeline error as a failed result.
func (ws *wsSession) sendErr(requestID string, err error) {
	_, errType := classifyError(err)
	ws.send(WebSocketResponse{
		Type:      wsTypeResult,
		Status:    "error",
		Error:     err.Error(),
		ErrorType: errType,
		RequestID: requestID,
	})
}

// sendError reports a malformed request.
func (ws *wsSession) sendError(requestID, errorType, message string) {
	ws.send(WebSocketResponse{
		Type:      wsTypeError,
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}

func (ws *wsSession) send(response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			slog.Error("Failed to send WebSocket message", "error", err)
		}
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
