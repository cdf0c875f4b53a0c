package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CanvasObject is one object in the drawing widget's JSON output.
type CanvasObject struct {
	Type   string   `json:"type"`
	Left   float64  `json:"left"`
	Top    float64  `json:"top"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	Region *int     `json:"region,omitempty"`
	Radius *float64 `json:"radius,omitempty"`
}

// Canvas is the drawing widget's JSON document.
type Canvas struct {
	Version string         `json:"version"`
	Objects []CanvasObject `json:"objects"`
}

// Point returns a point object as the widget emits it in point mode.
func Point(x, y float64) CanvasObject {
	r := 3.0
	return CanvasObject{Type: "circle", Left: x, Top: y, Radius: &r}
}

// TaggedPoint returns a point object carrying a region index.
func TaggedPoint(x, y float64, regionIndex int) CanvasObject {
	o := Point(x, y)
	o.Region = &regionIndex
	return o
}

// Rect returns a rectangle object.
func Rect(left, top, width, height float64) CanvasObject {
	return CanvasObject{Type: "rect", Left: left, Top: top, Width: width, Height: height}
}

// Square returns the four corner points of a w x h box at (x, y).
func Square(x, y, w, h float64) []CanvasObject {
	return []CanvasObject{Point(x, y), Point(x+w, y), Point(x+w, y+h), Point(x, y+h)}
}

// CanvasJSON encodes objects as widget JSON.
func CanvasJSON(t *testing.T, objects ...CanvasObject) []byte {
	t.Helper()
	if objects == nil {
		objects = []CanvasObject{}
	}
	b, err := json.Marshal(Canvas{Version: "4.4.0", Objects: objects})
	require.NoError(t, err)
	return b
}

// WriteCanvas writes the canvas JSON for objects to dir/name and returns its path.
func WriteCanvas(t *testing.T, dir, name string, objects ...CanvasObject) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, CanvasJSON(t, objects...), 0o600))
	return path
}

// ThreeRegionPoints returns twelve points forming three boxes on a 500x300
// canvas: top-left, top-right and bottom half.
func ThreeRegionPoints() []CanvasObject {
	var objs []CanvasObject
	objs = append(objs, Square(10, 10, 100, 50)...)
	objs = append(objs, Square(300, 20, 150, 60)...)
	objs = append(objs, Square(50, 180, 400, 80)...)
	return objs
}
