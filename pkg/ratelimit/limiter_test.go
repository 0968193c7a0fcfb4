package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(5, 200*time.Millisecond)

	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(), "token %d should be available", i+1)
	}
	assert.False(t, tb.Allow(), "bucket should be exhausted")

	time.Sleep(250 * time.Millisecond)
	assert.True(t, tb.Allow(), "bucket should refill after the period")

	tb.tokens = 0
	tb.Reset()
	assert.Equal(t, tb.capacity, tb.tokens)
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, 200*time.Millisecond)

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, sw.Allow())

	require.NoError(t, sw.Wait(context.Background()))

	sw.Reset()
	assert.Empty(t, sw.requests)
}

func TestForMedia(t *testing.T) {
	assert.IsType(t, Unlimited{}, ForMedia(0, 5))

	l := ForMedia(60, 2)
	chain, ok := l.(Chain)
	require.True(t, ok)
	require.Len(t, chain, 2)
	assert.Equal(t, 2*time.Second, chain[0].(*TokenBucket).refillPeriod)

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
