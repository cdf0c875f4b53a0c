package ocr

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker(threshold, cooldown)
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for range 2 {
		require.NoError(t, b.Allow())
		b.Failure()
	}
	assert.Equal(t, StateClosed, b.State())

	require.NoError(t, b.Allow())
	b.Failure()
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	b.Failure()
	b.Success()
	b.Failure()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	b, clock := newTestBreaker(1, 10*time.Second)
	b.Failure()
	require.Equal(t, StateOpen, b.State())

	clock.advance(10 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Allow())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen, "only one trial call at a time")

	b.Success()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(3, 10*time.Second)
	for range 3 {
		b.Failure()
	}
	clock.advance(11 * time.Second)
	require.NoError(t, b.Allow())
	b.Failure()
	assert.Equal(t, StateOpen, b.State())

	clock.advance(5 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_WrapShortCircuits(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	calls := 0
	boom := errors.New("boom")
	ex := b.Wrap(ExtractorFunc(func(context.Context, image.Image) (Text, error) {
		calls++
		return Text{}, boom
	}))

	for range 2 {
		_, err := ex.Extract(context.Background(), testImage())
		require.ErrorIs(t, err, boom)
	}
	_, err := ex.Extract(context.Background(), testImage())
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestBreaker_CancelledTrialIsReleased(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)
	b.Failure()
	clock.advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := b.Wrap(ExtractorFunc(func(ctx context.Context, _ image.Image) (Text, error) {
		return Text{}, ctx.Err()
	}))
	_, err := ex.Extract(ctx, testImage())
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, StateHalfOpen, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
