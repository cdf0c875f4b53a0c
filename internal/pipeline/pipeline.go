// Package pipeline turns canvas annotations on an uploaded image into one row
// of extracted, cleaned field texts.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MeKo-Tech/cropocr/internal/common"
	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/region"
	"github.com/MeKo-Tech/cropocr/internal/textclean"
	"github.com/MeKo-Tech/cropocr/internal/utils"
)

// Config holds configuration for the pipeline.
type Config struct {
	Clean textclean.Options
	// KeepCrops keeps the cropped images on the result fields.
	KeepCrops bool
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{Clean: textclean.DefaultOptions()}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg       Config
	extractor ocr.Extractor
	profiler  *Profiler
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithExtractor sets the OCR extractor. A nil extractor crops only.
func (b *Builder) WithExtractor(ex ocr.Extractor) *Builder {
	b.extractor = ex
	return b
}

// WithCleanOptions sets the text cleanup options.
func (b *Builder) WithCleanOptions(opts textclean.Options) *Builder {
	b.cfg.Clean = opts
	return b
}

// WithKeepCrops keeps the cropped images on the result.
func (b *Builder) WithKeepCrops(keep bool) *Builder {
	b.cfg.KeepCrops = keep
	return b
}

// WithProfiler records per-run timings into p.
func (b *Builder) WithProfiler(p *Profiler) *Builder {
	b.profiler = p
	return b
}

// Build returns the configured pipeline.
func (b *Builder) Build() *Pipeline {
	return &Pipeline{cfg: b.cfg, extractor: b.extractor, profiler: b.profiler}
}

// Pipeline runs validate, partition, box, rescale, crop, OCR and cleanup for
// one set of annotations. It is safe for concurrent use when its extractor is.
type Pipeline struct {
	cfg       Config
	extractor ocr.Extractor
	profiler  *Profiler
}

// Map validates annotations against the session layout and returns the
// rescaled region boxes without cropping or OCR.
func (p *Pipeline) Map(s *Session, annotations []region.Annotation) ([]region.Mapped, error) {
	return s.Mapper().Map(annotations, s.Scale)
}

// RunCanvas parses canvas JSON and runs the pipeline. region.ErrNoAnnotations
// is returned unchanged when the canvas holds nothing yet.
func (p *Pipeline) RunCanvas(ctx context.Context, s *Session, canvas []byte) (*Result, error) {
	annotations, err := region.ParseCanvas(canvas)
	if err != nil {
		recordRun(err)
		return nil, err
	}
	return p.Run(ctx, s, annotations)
}

// Run processes one annotation set. Validation errors are returned so the
// caller can re-prompt; degenerate regions and OCR failures are recorded as
// warnings on the result.
func (p *Pipeline) Run(ctx context.Context, s *Session, annotations []region.Annotation) (*Result, error) {
	total := common.NewTimer("total")

	mapTimer := common.NewTimer("mapping")
	mapped, err := p.Map(s, annotations)
	mapTimer.Stop()
	if err != nil {
		slog.Debug("Annotations rejected", "layout", s.Layout.Name, "count", len(annotations), "error", err)
		recordRun(err)
		return nil, err
	}

	res := &Result{
		Layout:       s.Layout.Name,
		Width:        s.Width(),
		Height:       s.Height(),
		CanvasWidth:  s.CanvasWidth,
		CanvasHeight: s.CanvasHeight,
		Fields:       make([]FieldResult, 0, len(mapped)),
	}

	var next ocr.Extractor
	if !s.Layout.CropOnly {
		next = p.extractor
	}
	extractor := ocr.Fallback{Next: next}

	cropTimer, ocrTimer := common.NewIdleTimer("crop"), common.NewIdleTimer("ocr")
	for i, m := range mapped {
		field := s.Layout.Fields[i]
		fr := FieldResult{
			Index:     i,
			Field:     field.Name,
			Box:       boxFromRect(m.Image),
			CanvasBox: m.Canvas,
		}

		cropTimer.Restart()
		crop, degenerate := utils.Crop(s.Image, m.Image)
		cropTimer.Stop()

		if degenerate {
			w := DegenerateRegionWarning{Index: i, Field: field.Name, Rect: m.Image}
			slog.Warn("Degenerate region", "layout", s.Layout.Name, "field", field.Name, "rect", m.Image.String())
			degenerateRegionsTotal.Inc()
			res.Warnings = append(res.Warnings, w.Warning())
			fr.Degenerate = true
			fr.RawText, fr.Text, fr.Source = ocr.Placeholder, ocr.Placeholder, ocr.SourceSkipped
			res.Fields = append(res.Fields, fr)
			continue
		}

		ocrTimer.Restart()
		txt, err := extractor.Extract(ctx, crop)
		ocrTimer.Stop()
		if err != nil {
			recordRun(err)
			return nil, err
		}
		if txt.Err != nil {
			slog.Warn("OCR failed, using placeholder", "field", field.Name, "error", txt.Err)
			res.Warnings = append(res.Warnings, Warning{
				Type:    WarningOCR,
				Index:   i,
				Field:   field.Name,
				Message: txt.Err.Error(),
			})
		}

		fr.RawText = txt.Value
		fr.Text = textclean.CleanWith(txt.Value, field.Tokens, p.cfg.Clean)
		fr.Found = txt.Found
		fr.Source = txt.Source
		if p.cfg.KeepCrops {
			fr.Crop = crop
		}
		res.Fields = append(res.Fields, fr)
	}

	res.Processing.MappingNs = mapTimer.Total().Nanoseconds()
	res.Processing.CropNs = cropTimer.Total().Nanoseconds()
	res.Processing.OCRNs = ocrTimer.Total().Nanoseconds()
	res.Processing.TotalNs = total.Stop().Nanoseconds()

	recordRun(nil)
	pipelineDuration.Observe(total.Total().Seconds())
	if p.profiler != nil {
		p.profiler.Record(res)
	}
	slog.Debug("Pipeline run complete",
		"layout", res.Layout,
		"fields", len(res.Fields),
		"warnings", len(res.Warnings),
		"crop", cropTimer,
		"ocr", ocrTimer,
		"total", total.Total())
	return res, nil
}

func recordRun(err error) {
	var verr *region.ValidationError
	switch {
	case err == nil:
		pipelineRunsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, region.ErrNoAnnotations):
		pipelineRunsTotal.WithLabelValues("no_annotations").Inc()
	case errors.As(err, &verr):
		pipelineRunsTotal.WithLabelValues("validation").Inc()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		pipelineRunsTotal.WithLabelValues("cancelled").Inc()
	default:
		pipelineRunsTotal.WithLabelValues("error").Inc()
	}
}
