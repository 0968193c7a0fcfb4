// Package humanize supplies the randomized delays and cursor jitter that
// keep the automation from looking scripted.
package humanize

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper sleeps on a timer.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Mouse is the subset of a page the jitter needs.
type Mouse interface {
	MouseMove(ctx context.Context, x, y float64) error
	Viewport(ctx context.Context) (width, height float64, err error)
}

// Pacer draws random delays and sleeps them. It is safe for concurrent use.
type Pacer struct {
	mu      sync.Mutex
	rng     *rand.Rand
	sleeper Sleeper
}

// NewPacer creates a pacer. A nil sleeper sleeps for real.
func NewPacer(sleeper Sleeper) *Pacer {
	return NewPacerWithSeed(sleeper, time.Now().UnixNano())
}

// NewPacerWithSeed creates a pacer with a fixed random source.
func NewPacerWithSeed(sleeper Sleeper, seed int64) *Pacer {
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	return &Pacer{rng: rand.New(rand.NewSource(seed)), sleeper: sleeper}
}

func (p *Pacer) float64() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

// Between returns a uniform duration in [lo, hi).
func (p *Pacer) Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(p.float64()*float64(hi-lo))
}

// Sleep sleeps exactly d.
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.sleeper.Sleep(ctx, d)
}

// Pause sleeps a uniform duration in [lo, hi).
func (p *Pacer) Pause(ctx context.Context, lo, hi time.Duration) error {
	return p.sleeper.Sleep(ctx, p.Between(lo, hi))
}

// TypingInterval is the gap between two keystrokes: one second divided by
// a uniform factor in [2, 3).
func (p *Pacer) TypingInterval() time.Duration {
	return time.Duration(float64(time.Second) / (2 + p.float64()))
}

// Jitter moves the cursor to a random point in the middle of the viewport.
func (p *Pacer) Jitter(ctx context.Context, m Mouse) error {
	w, h, err := m.Viewport(ctx)
	if err != nil {
		return err
	}
	x := w*0.25 + p.float64()*w*0.5
	y := h*0.25 + p.float64()*h*0.5
	return m.MouseMove(ctx, x, y)
}

// RecordingSleeper records requested sleeps without blocking.
type RecordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns every recorded duration in order.
func (r *RecordingSleeper) Sleeps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

// Total is the sum of recorded sleeps.
func (r *RecordingSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Sleeps() {
		total += d
	}
	return total
}
