package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cropocr/internal/testutil"
)

func TestBatchCommand(t *testing.T) {
	dir := isolate(t)
	srv := fakeOCR(t, "A1", "Ali", "Sara")
	images := filepath.Join(dir, "scans")
	for _, name := range []string{"one", "two"} {
		testutil.WriteImage(t, testutil.QuadrantImage(1000, 600), filepath.Join(images, name+".png"))
		testutil.WriteCanvas(t, images, name+".json", testutil.ThreeRegionPoints()...)
	}

	out, stderr, err := execute(t, "batch", images, "--workers", "1", "--stats", "--ocr-endpoint", srv.URL)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file,Code Bar,Expediteur,Destinataire,error", lines[0])
	assert.Contains(t, lines[1], "one.png,A1,Ali,Sara,")
	assert.Contains(t, stderr, "Total images: 2")
	assert.Len(t, srv.Requests(), 6)
}

func TestBatchCommand_FailedImage(t *testing.T) {
	dir := isolate(t)
	srv := fakeOCR(t, "A1")
	testutil.WriteImage(t, testutil.QuadrantImage(1000, 600), filepath.Join(dir, "bad.png"))
	testutil.WriteCanvas(t, dir, "bad.json", testutil.ThreeRegionPoints()[:3]...)
	output := filepath.Join(dir, "rows.json")

	_, _, err := execute(t, "batch", filepath.Join(dir, "bad.png"), "-f", "json", "-o", output, "--ocr-endpoint", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 images failed")
	assert.Contains(t, readFile(t, output), `"failed": 1`)
	assert.Empty(t, srv.Requests())
}

func TestBatchCommand_NoImages(t *testing.T) {
	dir := isolate(t)
	_, _, err := execute(t, "batch", dir, "--ocr-backend", "none")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image files found")
}
