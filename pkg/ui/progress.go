package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// StatusTracker counts crawl progress. It is safe for concurrent use.
type StatusTracker struct {
	mu        sync.Mutex
	yielded   int
	failed    int
	reloads   int
	limit     int
	startTime time.Time
}

// NewStatusTracker creates a tracker; a limit <= 0 means unbounded.
func NewStatusTracker(limit int) *StatusTracker {
	return &StatusTracker{
		limit:     limit,
		startTime: time.Now(),
	}
}

// IncrementYielded records one extracted note.
func (st *StatusTracker) IncrementYielded() {
	st.mu.Lock()
	st.yielded++
	st.mu.Unlock()
}

// IncrementFailed records a note that could not be extracted or saved.
func (st *StatusTracker) IncrementFailed() {
	st.mu.Lock()
	st.failed++
	st.mu.Unlock()
}

// IncrementReloads records one feed reload.
func (st *StatusTracker) IncrementReloads() {
	st.mu.Lock()
	st.reloads++
	st.mu.Unlock()
}

// SetYielded sets the yielded count, used when resuming.
func (st *StatusTracker) SetYielded(count int) {
	st.mu.Lock()
	st.yielded = count
	st.mu.Unlock()
}

// Counts returns yielded, failed and reload counts.
func (st *StatusTracker) Counts() (yielded, failed, reloads int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.yielded, st.failed, st.reloads
}

// LimitReached reports whether a bounded crawl is done.
func (st *StatusTracker) LimitReached() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.limit > 0 && st.yielded >= st.limit
}

// Bar renders the progress against the limit, or a plain count when unbounded.
func (st *StatusTracker) Bar() string {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.limit <= 0 {
		return fmt.Sprintf("[%d]", st.yielded)
	}
	filled := st.yielded * barWidth / st.limit
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, st.yielded, st.limit)
}

// Elapsed returns the time since tracking started
func (st *StatusTracker) Elapsed() time.Duration {
	return time.Since(st.startTime)
}

// Rate returns notes per minute
func (st *StatusTracker) Rate() float64 {
	minutes := st.Elapsed().Minutes()
	if minutes == 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return float64(st.yielded) / minutes
}
