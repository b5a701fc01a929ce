package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake(t *testing.T) {
	start := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	f := NewFake(start)

	assert.Equal(t, start, f.Now())

	f.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), f.Now())

	require.NoError(t, f.Sleep(context.Background(), 500*time.Millisecond))
	assert.Equal(t, start.Add(time.Minute+500*time.Millisecond), f.Now())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, f.Sleeps())

	f.Set(start)
	assert.Equal(t, start, f.Now())
}

func TestFake_SleepHonoursCancelledContext(t *testing.T) {
	f := NewFake(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.Sleep(ctx, time.Second), context.Canceled)
	assert.Empty(t, f.Sleeps())
}

func TestSystem_Sleep(t *testing.T) {
	c := NewSystem()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Hour), context.Canceled)

	start := time.Now()
	require.NoError(t, c.Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
