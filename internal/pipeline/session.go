package pipeline

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/MeKo-Tech/cropocr/internal/layout"
	"github.com/MeKo-Tech/cropocr/internal/region"
	"github.com/MeKo-Tech/cropocr/internal/utils"
)

// Session is the context of one uploaded image: the full-resolution image,
// the layout and the display canvas it is annotated on. The image is never
// modified; one session can serve many runs.
type Session struct {
	Image        image.Image
	Layout       layout.Layout
	CanvasWidth  int
	CanvasHeight int
	Scale        region.ScaleFactor

	displayOnce sync.Once
	display     *image.NRGBA
	displayErr  error
}

// NewSession derives the canvas size and scale factor for img under l.
func NewSession(img image.Image, l layout.Layout) (*Session, error) {
	if img == nil {
		return nil, errors.New("session: nil image")
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	cw, ch := l.CanvasSize(b.Dx(), b.Dy())
	scale, err := region.NewScaleFactor(b.Dx(), b.Dy(), cw, ch)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &Session{
		Image:        img,
		Layout:       l,
		CanvasWidth:  cw,
		CanvasHeight: ch,
		Scale:        scale,
	}, nil
}

// Width is the original image width.
func (s *Session) Width() int { return s.Image.Bounds().Dx() }

// Height is the original image height.
func (s *Session) Height() int { return s.Image.Bounds().Dy() }

// Mapper returns the region mapper for this session.
func (s *Session) Mapper() region.Mapper {
	return s.Layout.Mapper(s.Width(), s.Height())
}

// Display returns the image resized to the canvas, computed once.
func (s *Session) Display() (*image.NRGBA, error) {
	s.displayOnce.Do(func() {
		s.display, s.displayErr = utils.ResizeToCanvas(s.Image, s.CanvasWidth, s.CanvasHeight)
	})
	return s.display, s.displayErr
}
