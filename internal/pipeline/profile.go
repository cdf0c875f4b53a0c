package pipeline

import (
	"sync/atomic"
)

// Profiler aggregates simple counters/timers across multiple runs.
type Profiler struct {
	MappingTimeNs atomic.Int64
	CropTimeNs    atomic.Int64
	OCRTimeNs     atomic.Int64
	Runs          atomic.Int64
	Regions       atomic.Int64
	Warnings      atomic.Int64
}

// Record adds one run.
func (p *Profiler) Record(res *Result) {
	p.MappingTimeNs.Add(res.Processing.MappingNs)
	p.CropTimeNs.Add(res.Processing.CropNs)
	p.OCRTimeNs.Add(res.Processing.OCRNs)
	p.Runs.Add(1)
	p.Regions.Add(int64(len(res.Fields)))
	p.Warnings.Add(int64(len(res.Warnings)))
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	runs := p.Runs.Load()
	ocrNs := p.OCRTimeNs.Load()
	out := map[string]any{
		"runs":             runs,
		"regions":          p.Regions.Load(),
		"warnings":         p.Warnings.Load(),
		"mapping_ms_total": p.MappingTimeNs.Load() / 1_000_000,
		"crop_ms_total":    p.CropTimeNs.Load() / 1_000_000,
		"ocr_ms_total":     ocrNs / 1_000_000,
	}
	if runs > 0 {
		out["ocr_ms_per_run"] = float64(ocrNs) / 1_000_000.0 / float64(runs)
	}
	return out
}
