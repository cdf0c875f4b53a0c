package testutil

import (
	"bytes"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuadrantImage(t *testing.T) {
	img := QuadrantImage(100, 60)
	assert.Equal(t, TopLeftColor, img.NRGBAAt(0, 0))
	assert.Equal(t, TopRightColor, img.NRGBAAt(99, 0))
	assert.Equal(t, BottomLeftColor, img.NRGBAAt(0, 59))
	assert.Equal(t, BottomRightColor, img.NRGBAAt(99, 59))
}

func TestLabelImage_DrawsText(t *testing.T) {
	img := LabelImage(200, 50, TextAt{Text: "Code", X: 10, Y: 30})
	dark := 0
	for y := range 50 {
		for x := range 200 {
			if img.NRGBAAt(x, y).R < 128 {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
}

func TestWriteImage(t *testing.T) {
	path := WriteImage(t, SolidImage(4, 4, TopLeftColor), filepath.Join(t.TempDir(), "a", "b.png"))
	assert.FileExists(t, path)
	_, err := png.Decode(bytes.NewReader(EncodePNG(t, SolidImage(1, 1, TopLeftColor))))
	require.NoError(t, err)
}

func TestFileHelpers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x", "y")
	assert.False(t, FileExists(dir))
	require.NoError(t, EnsureDir(dir))
	assert.True(t, FileExists(dir))
	require.NoError(t, EnsureDir(dir))
	assert.False(t, FileExists("/non/existent/file"))
}

func TestCanvasJSON(t *testing.T) {
	data := CanvasJSON(t, Point(1, 2), Rect(3, 4, 5, 6), TaggedPoint(7, 8, 1))
	var doc Canvas
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotEmpty(t, doc.Version)
	require.Len(t, doc.Objects, 3)
	assert.Equal(t, "circle", doc.Objects[0].Type)
	assert.Equal(t, "rect", doc.Objects[1].Type)
	assert.InDelta(t, 5.0, doc.Objects[1].Width, 0)
	require.NotNil(t, doc.Objects[2].Region)
	assert.Equal(t, 1, *doc.Objects[2].Region)
	assert.Nil(t, doc.Objects[0].Region)
	assert.Len(t, ThreeRegionPoints(), 12)
}

func postImage(t *testing.T, url string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "crop.jpg")
	require.NoError(t, err)
	_, err = part.Write(EncodeJPEG(t, SolidImage(8, 8, TopLeftColor)))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-rapidapi-key", "k")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestFakeOCRServer(t *testing.T) {
	srv := NewFakeOCRServer(t, OCRReply{Status: http.StatusServiceUnavailable}, Text("hello"))

	resp := postImage(t, srv.URL)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = postImage(t, srv.URL)
	defer func() { _ = resp.Body.Close() }()
	var doc map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "hello", doc["text"])

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "k", reqs[0].APIKey)
	assert.NotNil(t, reqs[1].Image)
}
