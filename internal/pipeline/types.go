package pipeline

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/region"
)

// Box is an image-space rectangle.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func boxFromRect(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Rect converts the box back to an image.Rectangle.
func (b Box) Rect() image.Rectangle { return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H) }

// FieldResult is the outcome for one region.
type FieldResult struct {
	Index      int                `json:"index"`
	Field      string             `json:"field"`
	RawText    string             `json:"raw_text"`
	Text       string             `json:"text"`
	Found      bool               `json:"found"`
	Source     ocr.Source         `json:"source"`
	Box        Box                `json:"box"`
	CanvasBox  region.BoundingBox `json:"canvas_box"`
	Degenerate bool               `json:"degenerate,omitempty"`

	// Crop is the cropped region; nil when degenerate.
	Crop image.Image `json:"-"`
}

// Warning types.
const (
	WarningDegenerate = "degenerate_region"
	WarningOCR        = "ocr_failed"
)

// Warning is a non-fatal problem recorded during a run.
type Warning struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DegenerateRegionWarning reports a region whose box has no area after
// rescaling and clamping, so nothing was cropped.
type DegenerateRegionWarning struct {
	Index int
	Field string
	Rect  image.Rectangle
}

func (w DegenerateRegionWarning) String() string {
	return fmt.Sprintf("region %d (%s) is empty after cropping to %v", w.Index, w.Field, w.Rect)
}

// Warning converts w to its result form.
func (w DegenerateRegionWarning) Warning() Warning {
	return Warning{Type: WarningDegenerate, Index: w.Index, Field: w.Field, Message: w.String()}
}

// Result is the outcome of one pipeline run: one row of extracted fields.
type Result struct {
	Layout       string        `json:"layout"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	CanvasWidth  int           `json:"canvas_width"`
	CanvasHeight int           `json:"canvas_height"`
	Fields       []FieldResult `json:"fields"`
	Warnings     []Warning     `json:"warnings,omitempty"`
	Processing   struct {
		MappingNs int64 `json:"mapping_ns"`
		CropNs    int64 `json:"crop_ns"`
		OCRNs     int64 `json:"ocr_ns"`
		TotalNs   int64 `json:"total_ns"`
	} `json:"processing"`
}

// Values returns the cleaned texts in field order.
func (r *Result) Values() []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Text
	}
	return out
}

// Boxes returns the image-space boxes labelled with their field names.
func (r *Result) Boxes() []LabeledBox {
	out := make([]LabeledBox, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = LabeledBox{Label: f.Field, Rect: f.Box.Rect()}
	}
	return out
}
