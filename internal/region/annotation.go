// Package region maps annotations drawn on a resized display canvas to
// pixel-accurate bounding boxes on the original image.
package region

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind identifies the shape of an annotation.
type Kind int

const (
	// KindPoint is a single click on the canvas.
	KindPoint Kind = iota
	// KindRectangle is a dragged axis-aligned rectangle.
	KindRectangle
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindRectangle:
		return "rect"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses a mode name as used in layouts and requests.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "point", "points":
		return KindPoint, nil
	case "rect", "rectangle", "rectangles":
		return KindRectangle, nil
	}
	return 0, fmt.Errorf("unknown annotation mode: %q (must be point or rect)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Annotation is a single user mark in canvas coordinates. Width and Height
// are only meaningful for rectangles. Region is the optional region index the
// canvas assigned to the mark; -1 means untagged.
type Annotation struct {
	Kind   Kind
	X      float64
	Y      float64
	Width  float64
	Height float64
	Region int
}

// NewPoint returns an untagged point annotation.
func NewPoint(x, y float64) Annotation {
	return Annotation{Kind: KindPoint, X: x, Y: y, Region: -1}
}

// NewRectangle returns an untagged rectangle annotation.
func NewRectangle(left, top, width, height float64) Annotation {
	return Annotation{Kind: KindRectangle, X: left, Y: top, Width: width, Height: height, Region: -1}
}

// Tagged reports whether the annotation carries a region index.
func (a Annotation) Tagged() bool { return a.Region >= 0 }

// ErrNoAnnotations is returned when the canvas has not produced any data yet.
var ErrNoAnnotations = errors.New("no annotations yet")

// MaxCoordinate bounds the magnitude of every canvas value accepted from the
// widget. Larger values cannot come from a real canvas.
const MaxCoordinate = 1 << 24

// canvasObject is one entry of the drawable-canvas "objects" array.
type canvasObject struct {
	Type   string   `json:"type"`
	Left   *float64 `json:"left"`
	Top    *float64 `json:"top"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	Region *int     `json:"region"`
}

type canvasDocument struct {
	Objects *[]canvasObject `json:"objects"`
}

// ParseCanvas decodes the JSON emitted by the canvas widget. A null body,
// an empty body, or a document without an "objects" key yields
// ErrNoAnnotations. Each object must carry finite left/top values, and
// rectangles must carry non-negative width/height.
func ParseCanvas(data []byte) ([]Annotation, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, ErrNoAnnotations
	}

	var doc canvasDocument
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid canvas data: %v", err)}
	}
	if doc.Objects == nil {
		return nil, ErrNoAnnotations
	}

	out := make([]Annotation, 0, len(*doc.Objects))
	for i, obj := range *doc.Objects {
		a, err := obj.toAnnotation()
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("object %d: %v", i, err)}
		}
		out = append(out, a)
	}
	return out, nil
}

func (o canvasObject) toAnnotation() (Annotation, error) {
	if o.Left == nil || o.Top == nil {
		return Annotation{}, errors.New("missing left/top")
	}
	if !finite(*o.Left) || !finite(*o.Top) {
		return Annotation{}, errors.New("left/top must be finite")
	}
	if !inRange(*o.Left) || !inRange(*o.Top) {
		return Annotation{}, fmt.Errorf("left/top must be within ±%d, got %g,%g", MaxCoordinate, *o.Left, *o.Top)
	}

	region := -1
	if o.Region != nil {
		if *o.Region < 0 {
			return Annotation{}, fmt.Errorf("negative region index %d", *o.Region)
		}
		region = *o.Region
	}

	switch strings.ToLower(o.Type) {
	case "rect", "rectangle":
		if o.Width == nil || o.Height == nil {
			return Annotation{}, errors.New("rectangle missing width/height")
		}
		if !finite(*o.Width) || !finite(*o.Height) || *o.Width < 0 || *o.Height < 0 {
			return Annotation{}, fmt.Errorf("rectangle width/height must be non-negative, got %gx%g", *o.Width, *o.Height)
		}
		if !inRange(*o.Width) || !inRange(*o.Height) {
			return Annotation{}, fmt.Errorf("rectangle width/height must be at most %d, got %gx%g", MaxCoordinate, *o.Width, *o.Height)
		}
		a := NewRectangle(*o.Left, *o.Top, *o.Width, *o.Height)
		a.Region = region
		return a, nil
	case "circle", "point", "":
		a := NewPoint(*o.Left, *o.Top)
		a.Region = region
		return a, nil
	default:
		return Annotation{}, fmt.Errorf("unsupported object type %q", o.Type)
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func inRange(v float64) bool { return math.Abs(v) <= MaxCoordinate }
