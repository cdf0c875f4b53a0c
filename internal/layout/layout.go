// Package layout describes how many regions a user marks on a canvas, how
// they are marked, and which field each region fills.
package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/cropocr/internal/region"
)

// Field is one output column and the boilerplate labels stripped from its text.
type Field struct {
	Name   string   `yaml:"name" json:"name"`
	Tokens []string `yaml:"tokens,omitempty" json:"tokens,omitempty"`
}

// Layout is a named region selection scheme.
type Layout struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Mode        region.Kind `yaml:"mode" json:"mode"`
	RegionSize  int         `yaml:"region_size" json:"region_size"`
	Regions     int         `yaml:"regions" json:"regions"`

	// CanvasWidth and CanvasHeight size the display image. Native layouts
	// draw on the image at its own size.
	CanvasWidth  int  `yaml:"canvas_width,omitempty" json:"canvas_width,omitempty"`
	CanvasHeight int  `yaml:"canvas_height,omitempty" json:"canvas_height,omitempty"`
	Native       bool `yaml:"native,omitempty" json:"native,omitempty"`

	// CropOnly layouts crop regions without sending them to OCR.
	CropOnly bool `yaml:"crop_only,omitempty" json:"crop_only,omitempty"`

	Fields []Field `yaml:"fields" json:"fields"`
}

// ExpectedAnnotations is the number of marks a complete selection has.
func (l Layout) ExpectedAnnotations() int { return l.RegionSize * l.Regions }

// CanvasSize returns the display canvas size for an image of the given size.
func (l Layout) CanvasSize(imageWidth, imageHeight int) (int, int) {
	if l.Native {
		return imageWidth, imageHeight
	}
	return l.CanvasWidth, l.CanvasHeight
}

// Mapper returns the region mapper for an image of the given size.
func (l Layout) Mapper(imageWidth, imageHeight int) region.Mapper {
	w, h := l.CanvasSize(imageWidth, imageHeight)
	return region.Mapper{
		Mode:         l.Mode,
		RegionSize:   l.RegionSize,
		Regions:      l.Regions,
		CanvasWidth:  w,
		CanvasHeight: h,
	}
}

// FieldNames returns the field names in region order.
func (l Layout) FieldNames() []string {
	names := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks the layout for consistency.
func (l Layout) Validate() error {
	var errs []string

	if strings.TrimSpace(l.Name) == "" {
		errs = append(errs, "name is required")
	}
	if l.Mode != region.KindPoint && l.Mode != region.KindRectangle {
		errs = append(errs, fmt.Sprintf("invalid mode: %s", l.Mode))
	}
	if l.RegionSize <= 0 {
		errs = append(errs, "region_size must be positive")
	}
	if l.Mode == region.KindRectangle && l.RegionSize != 1 {
		errs = append(errs, "rect layouts must have region_size 1")
	}
	if l.Regions <= 0 {
		errs = append(errs, "regions must be positive")
	}
	if !l.Native && (l.CanvasWidth <= 0 || l.CanvasHeight <= 0) {
		errs = append(errs, "canvas_width and canvas_height must be positive unless native")
	}
	if len(l.Fields) != l.Regions {
		errs = append(errs, fmt.Sprintf("expected %d fields, got %d", l.Regions, len(l.Fields)))
	}
	seen := make(map[string]bool, len(l.Fields))
	for i, f := range l.Fields {
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, fmt.Sprintf("field %d has no name", i))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("duplicate field name: %s", f.Name))
		}
		seen[f.Name] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid layout %q: %s", l.Name, strings.Join(errs, "; "))
	}
	return nil
}

// ErrUnknownLayout is returned by Registry.Get for unregistered names.
var ErrUnknownLayout = errors.New("unknown layout")
