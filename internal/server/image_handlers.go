package server

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/cropocr/internal/pipeline"
	"github.com/MeKo-Tech/cropocr/internal/region"
	"github.com/MeKo-Tech/cropocr/internal/utils"
)

const canvasJPEGQuality = 90

// regionRequest is a decoded multipart upload.
type regionRequest struct {
	session *pipeline.Session
	canvas  []byte
	format  string
}

// extractHandler crops every annotated region, runs OCR and returns the row.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := s.parseRegionRequest(w, r, true)
	if !ok {
		regionRequestsTotal.WithLabelValues("extract", "error").Inc()
		return
	}
	if !pipeline.ValidFormat(req.format) {
		regionRequestsTotal.WithLabelValues("extract", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("unsupported format %q (want one of %s)", req.format,
			strings.Join(pipeline.Formats, ", ")), errorTypeInvalidRequest, http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.RunCanvas(ctx, req.session, req.canvas)
	duration := time.Since(start)
	if err != nil {
		regionRequestsTotal.WithLabelValues("extract", "error").Inc()
		s.writeError(w, err)
		return
	}

	regionRequestsTotal.WithLabelValues("extract", "success").Inc()
	regionProcessingDuration.WithLabelValues("extract").Observe(duration.Seconds())
	observeResult("extract", res)

	s.writeResult(w, res, req.format)
}

// previewHandler returns a PNG of the image with the mapped boxes drawn on it.
func (s *Server) previewHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := s.parseRegionRequest(w, r, true)
	if !ok {
		regionRequestsTotal.WithLabelValues("preview", "error").Inc()
		return
	}

	annotations, err := region.ParseCanvas(req.canvas)
	if err != nil {
		regionRequestsTotal.WithLabelValues("preview", "error").Inc()
		s.writeError(w, err)
		return
	}
	mapped, err := s.pipeline.Map(req.session, annotations)
	if err != nil {
		regionRequestsTotal.WithLabelValues("preview", "error").Inc()
		s.writeError(w, err)
		return
	}

	overlay := pipeline.RenderOverlay(req.session.Image, pipeline.MappedBoxes(req.session, mapped), s.overlayColor)
	regionRequestsTotal.WithLabelValues("preview", "success").Inc()
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, overlay); err != nil {
		slog.Error("Failed to encode preview", "error", err)
	}
}

// canvasHandler returns the image resized to the layout canvas, which is the
// coordinate space annotations must be drawn in.
func (s *Server) canvasHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := s.parseRegionRequest(w, r, false)
	if !ok {
		regionRequestsTotal.WithLabelValues("canvas", "error").Inc()
		return
	}

	display, err := req.session.Display()
	if err != nil {
		regionRequestsTotal.WithLabelValues("canvas", "error").Inc()
		s.writeError(w, err)
		return
	}
	data, err := utils.EncodeJPEG(display, canvasJPEGQuality)
	if err != nil {
		regionRequestsTotal.WithLabelValues("canvas", "error").Inc()
		s.writeError(w, err)
		return
	}

	regionRequestsTotal.WithLabelValues("canvas", "success").Inc()
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Canvas-Width", strconv.Itoa(req.session.CanvasWidth))
	w.Header().Set("X-Canvas-Height", strconv.Itoa(req.session.CanvasHeight))
	w.Header().Set("X-Image-Width", strconv.Itoa(req.session.Width()))
	w.Header().Set("X-Image-Height", strconv.Itoa(req.session.Height()))
	_, _ = w.Write(data)
}

// parseRegionRequest reads the multipart upload. On failure the error
// response has already been written and ok is false.
func (s *Server) parseRegionRequest(w http.ResponseWriter, r *http.Request, needCanvas bool) (*regionRequest, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", errorTypeInvalidRequest, http.StatusBadRequest)
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", errorTypeInvalidRequest, http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		s.writeErrorResponse(w, "File too large", errorTypeInvalidRequest, http.StatusRequestEntityTooLarge)
		return nil, false
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", errorTypeInternal, http.StatusInternalServerError)
		return nil, false
	}
	img, _, err := utils.DecodeImage(data, s.maxPixels)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}

	name := r.FormValue("layout")
	if name == "" {
		name = s.defaultLayout
	}
	l, err := s.layouts.Get(name)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	session, err := pipeline.NewSession(img, l)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}

	req := &regionRequest{session: session, format: requestFormat(r)}
	if needCanvas {
		canvas, err := formCanvas(r)
		if err != nil {
			s.writeErrorResponse(w, "Failed to read annotations", errorTypeInvalidRequest, http.StatusBadRequest)
			return nil, false
		}
		req.canvas = canvas
	}
	return req, true
}

// formCanvas reads the annotations either as a form value or as an uploaded
// JSON file. A missing field yields nil, which the parser reports as no
// annotations.
func formCanvas(r *http.Request) ([]byte, error) {
	if v := r.FormValue("annotations"); v != "" {
		return []byte(v), nil
	}
	file, _, err := r.FormFile("annotations")
	if err != nil {
		return nil, nil //nolint:nilerr // absent annotations are reported by the parser
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

// requestFormat reads the output format from the form or query, defaulting
// to JSON.
func requestFormat(r *http.Request) string {
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == "" {
		format = pipeline.FormatJSON
	}
	return strings.ToLower(format)
}

func (s *Server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeoutSec > 0 {
		return context.WithTimeout(parent, time.Duration(s.timeoutSec)*time.Second)
	}
	return context.WithCancel(parent)
}

func (s *Server) writeResult(w http.ResponseWriter, res *pipeline.Result, format string) {
	if format == pipeline.FormatJSON {
		s.writeJSON(w, http.StatusOK, ExtractResponse{Success: true, Result: res})
		return
	}

	out, err := pipeline.Render(res, format)
	if err != nil {
		http.Error(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
		return
	}
	switch format {
	case pipeline.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	_, _ = w.Write([]byte(out))
}

func observeResult(kind string, res *pipeline.Result) {
	var textLen int
	for _, f := range res.Fields {
		textLen += len(f.Text)
	}
	extractedTextLength.WithLabelValues(kind).Observe(float64(textLen))
	regionsExtracted.WithLabelValues(kind).Observe(float64(len(res.Fields)))
}
