package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"rednote/pkg/models"
)

const maxTitleWidth = 24

// ProgressDisplay renders a single updating crawl line, or one line per
// note in debug mode.
type ProgressDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	source  string
	tracker *StatusTracker
	current string
	images  int
	isDebug bool
}

// NewProgressDisplay creates a display for a crawl of source bounded by limit.
func NewProgressDisplay(out io.Writer, source string, limit int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:     out,
		source:  source,
		tracker: NewStatusTracker(limit),
		isDebug: debug,
	}
}

// Tracker exposes the underlying counters.
func (p *ProgressDisplay) Tracker() *StatusTracker {
	return p.tracker
}

// SetYielded sets the initial count when resuming.
func (p *ProgressDisplay) SetYielded(count int) {
	p.tracker.SetYielded(count)
}

// CompleteNote records an extracted note and where it was saved.
func (p *ProgressDisplay) CompleteNote(note models.Note, dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.IncrementYielded()
	p.images += len(note.Images)
	p.current = truncate(note.Detail.Title, maxTitleWidth)

	if p.isDebug {
		fmt.Fprintf(p.out, "%s %s • %s", Green("✓"), note.Detail.Title, Dim(fmt.Sprintf("♥ %d", note.Detail.Likes)))
		if dir != "" {
			fmt.Fprintf(p.out, " • %s", Dim(dir))
		}
		fmt.Fprintln(p.out)
		return
	}
	p.printProgress()
}

// FailNote records a note that could not be processed.
func (p *ProgressDisplay) FailNote(url string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.IncrementFailed()
	if p.isDebug {
		fmt.Fprintf(p.out, "%s Failed: %s - %v\n", Red("✗"), url, err)
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) printProgress() {
	_, failed, _ := p.tracker.Counts()

	line := fmt.Sprintf("%s %s • %.1f/min", Cyan(p.source), p.tracker.Bar(), p.tracker.Rate())
	if p.images > 0 {
		line += fmt.Sprintf(" • %d images", p.images)
	}
	if p.current != "" {
		line += " • " + p.current
	}
	if failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d errors", failed))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

// Complete prints the crawl summary.
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	yielded, failed, _ := p.tracker.Counts()
	elapsed := p.tracker.Elapsed()

	fmt.Fprintf(p.out, "\n\n%s Extracted %d notes from %s\n", Green("✓"), yielded, p.source)
	fmt.Fprintf(p.out, "  %s %d images in %s (%.1f notes/min)\n",
		Dim("•"), p.images, formatDuration(elapsed), p.tracker.Rate())
	if failed > 0 {
		fmt.Fprintf(p.out, "  %s %d notes failed\n", Dim("•"), failed)
	}
}

// truncate cuts s to width runes.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
