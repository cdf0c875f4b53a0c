package region

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
)

// BoundingBox is an axis-aligned box in canvas-space.
type BoundingBox struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// Width returns the box width.
func (b BoundingBox) Width() float64 { return b.XMax - b.XMin }

// Height returns the box height.
func (b BoundingBox) Height() float64 { return b.YMax - b.YMin }

// Empty reports whether the box has zero (or negative) area.
func (b BoundingBox) Empty() bool { return b.XMax <= b.XMin || b.YMax <= b.YMin }

// ScaleFactor maps canvas-space to image-space.
type ScaleFactor struct {
	X float64 `json:"scale_x"`
	Y float64 `json:"scale_y"`
}

// NewScaleFactor derives the per-axis scale from the original image size and
// the canvas size the image was displayed at.
func NewScaleFactor(origW, origH, canvasW, canvasH int) (ScaleFactor, error) {
	if origW <= 0 || origH <= 0 {
		return ScaleFactor{}, fmt.Errorf("invalid original size %dx%d", origW, origH)
	}
	if canvasW <= 0 || canvasH <= 0 {
		return ScaleFactor{}, fmt.Errorf("invalid canvas size %dx%d", canvasW, canvasH)
	}
	return ScaleFactor{
		X: float64(origW) / float64(canvasW),
		Y: float64(origH) / float64(canvasH),
	}, nil
}

// Group is an ordered set of annotations assigned to one region of interest.
type Group struct {
	Index       int
	Annotations []Annotation
}

// ValidateCount succeeds only when exactly expected annotations are present.
func ValidateCount(annotations []Annotation, expected int) error {
	if len(annotations) != expected {
		return &ValidationError{Expected: expected, Got: len(annotations)}
	}
	return nil
}

// Partition splits annotations into consecutive groups of regionSize in
// creation order. When every annotation carries a region tag, groups are
// formed by tag instead (ascending, stable within a tag) and each tag must
// hold exactly regionSize annotations.
func Partition(annotations []Annotation, regionSize int) ([]Group, error) {
	if regionSize <= 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("region size must be positive, got %d", regionSize)}
	}
	if len(annotations)%regionSize != 0 {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("%d annotations cannot be split into regions of %d", len(annotations), regionSize),
		}
	}

	tagged := 0
	for _, a := range annotations {
		if a.Tagged() {
			tagged++
		}
	}
	switch {
	case tagged == 0:
		return partitionByOrder(annotations, regionSize), nil
	case tagged == len(annotations):
		return partitionByTag(annotations, regionSize)
	default:
		return nil, &ValidationError{Reason: "either all or none of the annotations must carry a region index"}
	}
}

func partitionByOrder(annotations []Annotation, regionSize int) []Group {
	groups := make([]Group, 0, len(annotations)/regionSize)
	for i := 0; i < len(annotations); i += regionSize {
		members := make([]Annotation, regionSize)
		copy(members, annotations[i:i+regionSize])
		groups = append(groups, Group{Index: len(groups), Annotations: members})
	}
	return groups
}

func partitionByTag(annotations []Annotation, regionSize int) ([]Group, error) {
	byTag := make(map[int][]Annotation)
	for _, a := range annotations {
		byTag[a.Region] = append(byTag[a.Region], a)
	}
	tags := make([]int, 0, len(byTag))
	for t := range byTag {
		tags = append(tags, t)
	}
	sort.Ints(tags)

	groups := make([]Group, 0, len(tags))
	for _, t := range tags {
		members := byTag[t]
		if len(members) != regionSize {
			return nil, &ValidationError{
				Reason: fmt.Sprintf("region %d has %d annotations, expected %d", t, len(members), regionSize),
			}
		}
		groups = append(groups, Group{Index: len(groups), Annotations: members})
	}
	return groups, nil
}

// BoundingBoxFromPoints returns the box enclosing the points, clamped to
// [0, canvasW] x [0, canvasH]. The widget occasionally registers clicks just
// outside the canvas; those collapse onto the edge.
func BoundingBoxFromPoints(points []Annotation, canvasW, canvasH float64) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return BoundingBox{
		XMin: clamp(minX, 0, canvasW),
		YMin: clamp(minY, 0, canvasH),
		XMax: clamp(maxX, 0, canvasW),
		YMax: clamp(maxY, 0, canvasH),
	}
}

// BoundingBoxFromRectangle converts a rectangle annotation to a box. Its
// components are truncated to whole pixels first. The result is not clamped.
func BoundingBoxFromRectangle(a Annotation) BoundingBox {
	x, y := math.Trunc(a.X), math.Trunc(a.Y)
	w, h := math.Trunc(a.Width), math.Trunc(a.Height)
	return BoundingBox{XMin: x, YMin: y, XMax: x + w, YMax: y + h}
}

// Rescale maps a canvas-space box to image-space. Every coordinate is
// multiplied by its axis scale and truncated toward zero. The rectangle is
// built without normalization so inverted input stays detectable. Results
// saturate at the int32 range, which keeps the ordering of the corners.
func Rescale(box BoundingBox, scale ScaleFactor) image.Rectangle {
	return image.Rectangle{
		Min: image.Point{X: toPixel(box.XMin * scale.X), Y: toPixel(box.YMin * scale.Y)},
		Max: image.Point{X: toPixel(box.XMax * scale.X), Y: toPixel(box.YMax * scale.Y)},
	}
}

func toPixel(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

// Mapped is a region after box computation and rescaling.
type Mapped struct {
	Group  Group           `json:"-"`
	Canvas BoundingBox     `json:"canvas_box"`
	Image  image.Rectangle `json:"-"`
}

// Mapper runs the full annotation-to-box chain for one selection mode.
type Mapper struct {
	Mode         Kind
	RegionSize   int
	Regions      int
	CanvasWidth  int
	CanvasHeight int
}

// ExpectedAnnotations is the total annotation count the mapper requires.
func (m Mapper) ExpectedAnnotations() int { return m.RegionSize * m.Regions }

// Map validates the annotation set and returns one image-space box per region.
func (m Mapper) Map(annotations []Annotation, scale ScaleFactor) ([]Mapped, error) {
	if m.RegionSize <= 0 || m.Regions <= 0 {
		return nil, errors.New("mapper: region size and region count must be positive")
	}
	if m.Mode == KindRectangle && m.RegionSize != 1 {
		return nil, fmt.Errorf("mapper: rectangle mode needs region size 1, got %d", m.RegionSize)
	}
	if err := ValidateCount(annotations, m.ExpectedAnnotations()); err != nil {
		return nil, err
	}
	for i, a := range annotations {
		if a.Kind != m.Mode {
			return nil, &ValidationError{
				Reason: fmt.Sprintf("annotation %d is a %s, expected %s", i, a.Kind, m.Mode),
			}
		}
	}

	groups, err := Partition(annotations, m.RegionSize)
	if err != nil {
		return nil, err
	}

	out := make([]Mapped, 0, len(groups))
	for _, g := range groups {
		var box BoundingBox
		if m.Mode == KindPoint {
			box = BoundingBoxFromPoints(g.Annotations, float64(m.CanvasWidth), float64(m.CanvasHeight))
		} else {
			box = BoundingBoxFromRectangle(g.Annotations[0])
		}
		out = append(out, Mapped{Group: g, Canvas: box, Image: Rescale(box, scale)})
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
