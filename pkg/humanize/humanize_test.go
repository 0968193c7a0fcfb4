package humanize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMouse struct {
	x, y float64
}

func (m *fakeMouse) MouseMove(ctx context.Context, x, y float64) error {
	m.x, m.y = x, y
	return nil
}

func (m *fakeMouse) Viewport(ctx context.Context) (float64, float64, error) {
	return 1000, 800, nil
}

func TestBetweenStaysInRange(t *testing.T) {
	p := NewPacerWithSeed(&RecordingSleeper{}, 1)
	for i := 0; i < 1000; i++ {
		d := p.Between(time.Second, 6*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 6*time.Second)
	}
	assert.Equal(t, time.Second, p.Between(time.Second, time.Second))
}

func TestTypingInterval(t *testing.T) {
	p := NewPacerWithSeed(&RecordingSleeper{}, 7)
	for i := 0; i < 1000; i++ {
		d := p.TypingInterval()
		assert.Greater(t, d, time.Second/3)
		assert.LessOrEqual(t, d, time.Second/2)
	}
}

func TestPauseUsesSleeper(t *testing.T) {
	rec := &RecordingSleeper{}
	p := NewPacerWithSeed(rec, 3)

	require.NoError(t, p.Pause(context.Background(), 500*time.Millisecond, 1500*time.Millisecond))
	require.NoError(t, p.Sleep(context.Background(), 2*time.Second))

	sleeps := rec.Sleeps()
	require.Len(t, sleeps, 2)
	assert.GreaterOrEqual(t, sleeps[0], 500*time.Millisecond)
	assert.Equal(t, 2*time.Second, sleeps[1])
}

func TestJitterStaysInsideViewport(t *testing.T) {
	p := NewPacerWithSeed(&RecordingSleeper{}, 11)
	m := &fakeMouse{}
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Jitter(context.Background(), m))
		assert.True(t, m.x >= 250 && m.x <= 750, "x=%v", m.x)
		assert.True(t, m.y >= 200 && m.y <= 600, "y=%v", m.y)
	}
}

func TestRealSleeperHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := RealSleeper{}.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
