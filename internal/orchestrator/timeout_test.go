package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YodHeVauHe/CallCenterX/internal/backend"
)

func TestCall_ReturnsResult(t *testing.T) {
	got, err := call(context.Background(), time.Second, "fetch", func(ctx context.Context) (string, error) {
		return "value", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestCall_PropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	_, err := call(context.Background(), time.Second, "fetch", func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestCall_TimeoutBecomesTransient(t *testing.T) {
	// The fn ignores ctx entirely; the wrapper must still return on time.
	start := time.Now()
	_, err := call(context.Background(), 20*time.Millisecond, "fetch", func(ctx context.Context) (string, error) {
		time.Sleep(time.Second)
		return "late", nil
	})
	require.Error(t, err)
	assert.True(t, backend.IsTransient(err))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCall_ContextAwareFailureIsTransient(t *testing.T) {
	// A fn that honors ctx surfaces DeadlineExceeded itself; the wrapper
	// normalizes it the same way.
	_, err := call(context.Background(), 20*time.Millisecond, "fetch", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, backend.IsTransient(err))
}

func TestCall_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := call(ctx, time.Second, "fetch", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, backend.IsTransient(err))
}
