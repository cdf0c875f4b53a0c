package batch

import (
	"context"
	"encoding/json"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cropocr/internal/layout"
	"github.com/MeKo-Tech/cropocr/internal/ocr"
	"github.com/MeKo-Tech/cropocr/internal/region"
	"github.com/MeKo-Tech/cropocr/internal/testutil"
	"github.com/MeKo-Tech/cropocr/internal/textclean"
)

// sizeExtractor answers with the crop size, so results can be told apart
// regardless of the order workers run in.
type sizeExtractor struct {
	mu    sync.Mutex
	calls int
}

func (e *sizeExtractor) Extract(_ context.Context, img image.Image) (ocr.Text, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	b := img.Bounds()
	return ocr.Text{Value: strings.Repeat("x", b.Dx()/100), Found: true, Source: ocr.SourceRemote}, nil
}

func points3(t *testing.T) layout.Layout {
	t.Helper()
	l, err := layout.NewRegistry().Get(layout.Points3)
	require.NoError(t, err)
	return l
}

// writeLabels writes n labelled images with canvases next to them; the last
// canvas is incomplete when broken is set.
func writeLabels(t *testing.T, dir string, n int, broken bool) {
	t.Helper()
	for i := range n {
		name := filepath.Join(dir, "label_"+string(rune('a'+i)))
		testutil.WriteImage(t, testutil.QuadrantImage(1000, 600), name+".png")
		points := testutil.ThreeRegionPoints()
		if broken && i == n-1 {
			points = points[:7]
		}
		testutil.WriteCanvas(t, dir, filepath.Base(name)+".json", points...)
	}
}

func TestProcessBatch(t *testing.T) {
	dir := t.TempDir()
	writeLabels(t, dir, 5, true)
	ex := &sizeExtractor{}

	res, err := ProcessBatch(context.Background(), []string{dir}, &Config{
		Layout:    points3(t),
		Extractor: ex,
		Workers:   3,
	})
	require.NoError(t, err)
	require.Len(t, res.Images, 5)
	assert.Equal(t, 3, res.WorkerCount)
	assert.Equal(t, 1, res.Failed())
	assert.Equal(t, 12, ex.calls, "four complete images, three regions each")

	for i, img := range res.Images[:4] {
		require.NoError(t, img.Err, "image %d", i)
		assert.Equal(t, filepath.Join(dir, "label_"+string(rune('a'+i))+".png"), img.File)
		assert.Equal(t, []string{"xx", "xxx", "xxxxxxxx"}, img.Result.Values())
	}

	var verr *region.ValidationError
	require.ErrorAs(t, res.Images[4].Err, &verr)
	assert.Nil(t, res.Images[4].Result)
	require.Error(t, res.Err())
	assert.Contains(t, res.Err().Error(), "label_e.png")
}

func TestProcessBatch_CleanOptions(t *testing.T) {
	dir := t.TempDir()
	writeLabels(t, dir, 1, false)
	spaced := ocr.ExtractorFunc(func(context.Context, image.Image) (ocr.Text, error) {
		return ocr.Text{Value: " a \t  b ", Found: true, Source: ocr.SourceRemote}, nil
	})

	res, err := ProcessBatch(context.Background(), []string{dir}, &Config{Layout: points3(t), Extractor: spaced})
	require.NoError(t, err)
	assert.Equal(t, []string{"a \t  b", "a \t  b", "a \t  b"}, res.Images[0].Result.Values())

	res, err = ProcessBatch(context.Background(), []string{dir}, &Config{
		Layout:       points3(t),
		Extractor:    spaced,
		CleanOptions: textclean.Options{NormalizeForm: "NFC", CollapseWhitespace: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a b", "a b", "a b"}, res.Images[0].Result.Values())
}

func TestProcessBatch_AnnotationsDir(t *testing.T) {
	images, canvases := t.TempDir(), t.TempDir()
	testutil.WriteImage(t, testutil.QuadrantImage(1000, 600), filepath.Join(images, "one.png"))
	testutil.WriteCanvas(t, canvases, "one.json", testutil.ThreeRegionPoints()...)

	res, err := ProcessBatch(context.Background(), []string{images}, &Config{
		Layout:         points3(t),
		Extractor:      &sizeExtractor{},
		AnnotationsDir: canvases,
	})
	require.NoError(t, err)
	require.Len(t, res.Images, 1)
	require.NoError(t, res.Images[0].Err)
	assert.Equal(t, 1, res.WorkerCount)
}

func TestProcessBatch_MissingCanvas(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImage(t, testutil.QuadrantImage(100, 60), filepath.Join(dir, "lonely.png"))

	res, err := ProcessBatch(context.Background(), []string{dir}, &Config{Layout: points3(t)})
	require.NoError(t, err)
	require.Error(t, res.Images[0].Err)
	assert.Contains(t, res.Images[0].Err.Error(), "failed to read annotations")
}

func TestProcessBatch_Errors(t *testing.T) {
	_, err := ProcessBatch(context.Background(), []string{t.TempDir()}, &Config{Layout: points3(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image files found")

	_, err = ProcessBatch(context.Background(), []string{t.TempDir()}, &Config{})
	require.Error(t, err, "invalid layout")
}

func TestProcessBatch_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeLabels(t, dir, 2, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ProcessBatch(ctx, []string{dir}, &Config{Layout: points3(t), Extractor: &sizeExtractor{}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFormatResults(t *testing.T) {
	dir := t.TempDir()
	writeLabels(t, dir, 2, true)
	res, err := ProcessBatch(context.Background(), []string{dir}, &Config{
		Layout:    points3(t),
		Extractor: &sizeExtractor{},
	})
	require.NoError(t, err)
	first, second := res.Images[0].File, res.Images[1].File

	csvOut, err := res.FormatResults("csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(csvOut), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file,Code Bar,Expediteur,Destinataire,error", lines[0])
	assert.Equal(t, first+",xx,xxx,xxxxxxxx,", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], second+",,,,"), lines[2])

	jsonOut, err := res.FormatResults("json")
	require.NoError(t, err)
	var doc struct {
		Layout string `json:"layout"`
		Failed int    `json:"failed"`
		Images []struct {
			File  string `json:"file"`
			Error string `json:"error"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal([]byte(jsonOut), &doc))
	assert.Equal(t, "points3", doc.Layout)
	assert.Equal(t, 1, doc.Failed)
	assert.Empty(t, doc.Images[0].Error)
	assert.NotEmpty(t, doc.Images[1].Error)

	text, err := res.FormatResults("text")
	require.NoError(t, err)
	assert.Contains(t, text, "# "+first+"\nCode Bar: xx\n")
	assert.Contains(t, text, "# "+second+"\nerror: ")

	_, err = res.FormatResults("xml")
	require.Error(t, err)
}

func TestPrintStats(t *testing.T) {
	res := &Result{Images: []ImageResult{{File: "a"}, {File: "b", Err: assert.AnError}}, WorkerCount: 2}
	var buf strings.Builder
	res.PrintStats(&buf)
	assert.Contains(t, buf.String(), "Total images: 2")
	assert.Contains(t, buf.String(), "Failed: 1")
}
