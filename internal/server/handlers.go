package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cropocr/internal/layout"
	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/region"
	"github.com/MeKo-Tech/cropocr/internal/utils"
	"github.com/MeKo-Tech/cropocr/internal/version"
)

// Error types reported in error responses.
const (
	errorTypeValidation     = "validation"
	errorTypeImageDecode    = "image_decode"
	errorTypeNoAnnotations  = "no_annotations"
	errorTypeInvalidRequest = "invalid_request"
	errorTypeOCR            = "ocr_unavailable"
	errorTypeTimeout        = "timeout"
	errorTypeInternal       = "internal"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.profiler != nil {
		response.Stats = s.profiler.Snapshot()
	}
	s.writeJSON(w, http.StatusOK, response)
}

// layoutsHandler lists the registered layouts.
func (s *Server) layoutsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := s.layouts.All()
	infos := make([]LayoutInfo, len(all))
	for i, l := range all {
		infos[i] = layoutInfo(l)
	}
	s.writeJSON(w, http.StatusOK, LayoutsResponse{
		Layouts: infos,
		Count:   len(infos),
		Default: s.defaultLayout,
	})
}

func layoutInfo(l layout.Layout) LayoutInfo {
	info := LayoutInfo{
		Name:        l.Name,
		Description: l.Description,
		Mode:        l.Mode.String(),
		RegionSize:  l.RegionSize,
		Regions:     l.Regions,
		Annotations: l.ExpectedAnnotations(),
		CropOnly:    l.CropOnly,
		Fields:      l.FieldNames(),
	}
	if !l.Native {
		info.Canvas = &Size{Width: l.CanvasWidth, Height: l.CanvasHeight}
	}
	return info
}

// classifyError maps pipeline and decode errors to a status code and an
// error type for the response body.
func classifyError(err error) (int, string) {
	var verr *region.ValidationError
	var derr *utils.ImageDecodeError
	switch {
	case errors.Is(err, region.ErrNoAnnotations):
		return http.StatusBadRequest, errorTypeNoAnnotations
	case errors.As(err, &verr), errors.Is(err, layout.ErrUnknownLayout):
		return http.StatusBadRequest, errorTypeValidation
	case errors.As(err, &derr):
		return http.StatusBadRequest, errorTypeImageDecode
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorTypeTimeout
	case errors.Is(err, ocr.ErrCircuitOpen), ocr.IsRemoteError(err):
		return http.StatusBadGateway, errorTypeOCR
	default:
		return http.StatusInternalServerError, errorTypeInternal
	}
}

// writeError writes err as a JSON error response, choosing the status from
// its type.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, errType := classifyError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", err, "error_type", errType)
	}
	s.writeErrorResponse(w, err.Error(), errType, status)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, errType string, statusCode int) {
	s.writeJSON(w, statusCode, ExtractResponse{
		Success:   false,
		Error:     message,
		ErrorType: errType,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Can't send another response at this point
		slog.Error("Failed to encode response", "error", err)
	}
}
