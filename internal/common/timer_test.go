package common

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer(t *testing.T) {
	timer := NewTimer("mapping")
	assert.Equal(t, "mapping", timer.Name())

	time.Sleep(10 * time.Millisecond)

	d := timer.Stop()
	assert.GreaterOrEqual(t, d, 10*time.Millisecond)
	assert.Equal(t, d, timer.Total())
	assert.Equal(t, 1, timer.Laps())
	assert.Zero(t, timer.Stop(), "second Stop without Restart")
	assert.Equal(t, d, timer.Total())

	assert.Contains(t, timer.String(), "mapping: ")
	assert.Contains(t, timer.String(), "ms")
}

func TestTimer_Laps(t *testing.T) {
	timer := NewIdleTimer("ocr")
	assert.Zero(t, timer.Stop())
	assert.Zero(t, timer.Laps())

	var sum time.Duration
	for range 3 {
		timer.Restart()
		time.Sleep(2 * time.Millisecond)
		sum += timer.Stop()
	}
	assert.Equal(t, 3, timer.Laps())
	assert.Equal(t, sum, timer.Total())
	assert.Contains(t, timer.String(), "(3 laps)")
}

func TestTimer_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	timer := NewIdleTimer("crop")
	timer.Restart()
	timer.Stop()

	logger.Info("done", "crop", timer)
	assert.Contains(t, buf.String(), `"crop":{"total":`)
	assert.Contains(t, buf.String(), `"laps":1`)
}
