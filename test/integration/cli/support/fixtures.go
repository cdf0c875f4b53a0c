package support

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/cropocr/internal/testutil"
)

// aLabelImage writes the quadrant test image.
func (testCtx *TestContext) aLabelImage(width, height int, name string) error {
	f, err := os.Create(testCtx.Path(name)) //nolint:gosec // G304: scenario temp path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, testutil.QuadrantImage(width, height))
}

func (testCtx *TestContext) writeCanvas(name string, objects []testutil.CanvasObject) error {
	if objects == nil {
		objects = []testutil.CanvasObject{}
	}
	data, err := json.Marshal(testutil.Canvas{Version: "4.4.0", Objects: objects})
	if err != nil {
		return err
	}
	return os.WriteFile(testCtx.Path(name), data, 0o600)
}

// theStandardPoints writes the three-region point selection.
func (testCtx *TestContext) theStandardPoints(name string) error {
	return testCtx.writeCanvas(name, testutil.ThreeRegionPoints())
}

// someStandardPoints writes the first n points of the three-region selection.
func (testCtx *TestContext) someStandardPoints(name string, n int) error {
	points := testutil.ThreeRegionPoints()
	if n > len(points) {
		return fmt.Errorf("only %d standard points", len(points))
	}
	return testCtx.writeCanvas(name, points[:n])
}

// anEmptyCanvas writes a canvas without objects.
func (testCtx *TestContext) anEmptyCanvas(name string) error {
	return testCtx.writeCanvas(name, nil)
}

// aNullCanvas writes the literal null the widget reports before anything is drawn.
func (testCtx *TestContext) aNullCanvas(name string) error {
	return os.WriteFile(testCtx.Path(name), []byte("null"), 0o600)
}

// rectangles writes one rectangle per table row (left, top, width, height).
func (testCtx *TestContext) rectangles(name string, table *godog.Table) error {
	var objects []testutil.CanvasObject
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) != 4 {
			return fmt.Errorf("row %d: want left, top, width, height", i)
		}
		var v [4]float64
		for j, c := range row.Cells {
			f, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			v[j] = f
		}
		objects = append(objects, testutil.Rect(v[0], v[1], v[2], v[3]))
	}
	return testCtx.writeCanvas(name, objects)
}

// theOCRServiceAnswers scripts the fake OCR service with comma-separated texts.
func (testCtx *TestContext) theOCRServiceAnswers(texts string) error {
	var replies []testutil.OCRReply
	for _, s := range strings.Split(texts, ",") {
		replies = append(replies, testutil.Text(strings.TrimSpace(s)))
	}
	testCtx.OCR.SetReplies(replies...)
	return nil
}

// theOCRServiceFails makes every OCR call fail with status.
func (testCtx *TestContext) theOCRServiceFails(status int) error {
	testCtx.OCR.SetReplies(testutil.OCRReply{Status: status, Body: `{"error":"unavailable"}`})
	return nil
}

// theOCRServiceShouldHaveReceived checks the number of OCR calls.
func (testCtx *TestContext) theOCRServiceShouldHaveReceived(n int) error {
	if got := len(testCtx.OCR.Requests()); got != n {
		return fmt.Errorf("OCR service received %d requests, want %d", got, n)
	}
	return nil
}

// RegisterFixtureSteps registers the input fixture steps.
func (testCtx *TestContext) RegisterFixtureSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a (\d+)x(\d+) label image "([^"]*)"$`, testCtx.aLabelImage)
	sc.Step(`^an annotations file "([^"]*)" with the three standard regions$`, testCtx.theStandardPoints)
	sc.Step(`^an annotations file "([^"]*)" with (\d+) of the standard points$`, testCtx.someStandardPoints)
	sc.Step(`^an empty annotations file "([^"]*)"$`, testCtx.anEmptyCanvas)
	sc.Step(`^a null annotations file "([^"]*)"$`, testCtx.aNullCanvas)
	sc.Step(`^an annotations file "([^"]*)" with rectangles:$`, testCtx.rectangles)
	sc.Step(`^the OCR service answers "([^"]*)"$`, testCtx.theOCRServiceAnswers)
	sc.Step(`^the OCR service fails with status (\d+)$`, testCtx.theOCRServiceFails)
	sc.Step(`^the OCR service should have received (\d+) requests?$`, testCtx.theOCRServiceShouldHaveReceived)
}
