package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/cropocr/internal/region"
	"github.com/MeKo-Tech/cropocr/internal/utils"
)

// DefaultOverlayColor is the box colour used in previews.
const DefaultOverlayColor = "#ff0000"

// LabeledBox is an image-space box with a caption.
type LabeledBox struct {
	Label string
	Rect  image.Rectangle
}

// MappedBoxes labels mapped regions with the session's field names.
func MappedBoxes(s *Session, mapped []region.Mapped) []LabeledBox {
	out := make([]LabeledBox, len(mapped))
	for i, m := range mapped {
		label := fmt.Sprintf("#%d", i)
		if i < len(s.Layout.Fields) {
			label = s.Layout.Fields[i].Name
		}
		out[i] = LabeledBox{Label: label, Rect: m.Image}
	}
	return out
}

// ParseColor parses a hex colour such as "#00ff00".
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultOverlayColor
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid overlay color %q: %w", s, err)
	}
	return c, nil
}

// RenderOverlay draws labelled boxes over a copy of img.
func RenderOverlay(img image.Image, boxes []LabeledBox, boxColor color.Color) *image.RGBA {
	if img == nil {
		return nil
	}
	dst := utils.ToRGBA(img)
	off := img.Bounds().Min
	for _, b := range boxes {
		r := b.Rect.Canon().Sub(off)
		utils.DrawRect(dst, r, boxColor, 2)
		if b.Label != "" {
			utils.DrawLabel(dst, image.Pt(r.Min.X, r.Min.Y), b.Label, color.White, boxColor)
		}
	}
	return dst
}
