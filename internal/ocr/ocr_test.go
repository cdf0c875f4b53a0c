package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_PassesThrough(t *testing.T) {
	f := Fallback{Next: ExtractorFunc(func(context.Context, image.Image) (Text, error) {
		return Text{Value: "hello", Found: true, Source: SourceRemote}, nil
	})}
	txt, err := f.Extract(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "hello", txt.Value)
	assert.NoError(t, txt.Err)
}

func TestFallback_SubstitutesPlaceholder(t *testing.T) {
	boom := &RemoteServiceError{StatusCode: 500, Attempts: 3, Err: errors.New("boom")}
	f := Fallback{Next: ExtractorFunc(func(context.Context, image.Image) (Text, error) {
		return Text{}, boom
	})}
	txt, err := f.Extract(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, Placeholder, txt.Value)
	assert.Equal(t, SourceFallback, txt.Source)
	assert.False(t, txt.Found)
	assert.ErrorIs(t, txt.Err, boom)
}

func TestFallback_PropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := Fallback{Next: ExtractorFunc(func(ctx context.Context, _ image.Image) (Text, error) {
		return Text{}, ctx.Err()
	})}
	_, err := f.Extract(ctx, testImage())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallback_NilNextSkips(t *testing.T) {
	txt, err := Fallback{}.Extract(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, Placeholder, txt.Value)
	assert.Equal(t, SourceSkipped, txt.Source)
}

func TestRemoteServiceError_Message(t *testing.T) {
	err := &RemoteServiceError{StatusCode: 503, Attempts: 2, Err: errors.New("busy")}
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "2 attempt(s)")

	err = &RemoteServiceError{Attempts: 1, Err: errors.New("dial")}
	assert.NotContains(t, err.Error(), "status")
}
