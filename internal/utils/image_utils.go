package utils

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Crop extracts rect from img. The rectangle is intersected with the image
// bounds first; when nothing remains (xmax <= xmin or ymax <= ymin) a 0x0
// image is returned with degenerate set, and no panic occurs.
func Crop(img image.Image, rect image.Rectangle) (out image.Image, degenerate bool) {
	if img == nil || rect.Max.X <= rect.Min.X || rect.Max.Y <= rect.Min.Y {
		return imaging.New(0, 0, color.Transparent), true
	}
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent), true
	}
	return imaging.Crop(img, rect), false
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Canon().Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	// Top and bottom edges
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	// Left and right edges
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// DrawLabel writes text just above pt (or just inside the top edge when there
// is no room) on a filled background so it stays readable on any image.
func DrawLabel(dst *image.RGBA, pt image.Point, text string, fg, bg color.Color) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil() + 4
	h := face.Metrics().Height.Ceil() + 2

	top := pt.Y - h
	if top < dst.Bounds().Min.Y {
		top = pt.Y
	}
	box := image.Rect(pt.X, top, pt.X+w, top+h).Intersect(dst.Bounds())
	if box.Empty() {
		return
	}
	draw.Draw(dst, box, &image.Uniform{C: bg}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{C: fg},
		Face: face,
		Dot:  fixed.P(box.Min.X+2, box.Min.Y+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)
}

// ToRGBA copies img into a new RGBA image anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
