package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rednote/pkg/models"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prevOut, prevColor := Out, colorEnabled
	Out = buf
	colorEnabled = false
	t.Cleanup(func() {
		Out, colorEnabled = prevOut, prevColor
		quietMode, progressOnlyMode = false, false
	})
	return buf
}

func TestPrintModes(t *testing.T) {
	buf := captureOutput(t)

	PrintInfo("Keyword", "咖啡")
	PrintError("search failed", "timeout")
	assert.Equal(t, "Keyword: 咖啡\nsearch failed: timeout\n", buf.String())

	buf.Reset()
	SetProgressOnlyMode(true)
	PrintInfo("Keyword", "咖啡")
	PrintLogo()
	PrintWarning("slow")
	assert.Equal(t, "slow\n", buf.String())

	buf.Reset()
	SetQuietMode(true)
	PrintSuccess("done")
	PrintWarning("slow")
	PrintError("broken")
	assert.Equal(t, "broken\n", buf.String())
}

func TestColorize(t *testing.T) {
	captureOutput(t)
	assert.Equal(t, "x", Red("x"))
	SetColor(true)
	assert.Equal(t, "\033[31mx\033[0m", Red("x"))
}

func TestStatusTracker(t *testing.T) {
	st := NewStatusTracker(4)
	assert.Equal(t, "[░░░░░░░░░░░░░░░░░░░░] 0/4", st.Bar())

	st.IncrementYielded()
	st.IncrementYielded()
	st.IncrementFailed()
	st.IncrementReloads()
	assert.Equal(t, "[██████████░░░░░░░░░░] 2/4", st.Bar())
	assert.False(t, st.LimitReached())

	st.SetYielded(5)
	assert.True(t, st.LimitReached())
	assert.Contains(t, st.Bar(), "5/4")

	yielded, failed, reloads := st.Counts()
	assert.Equal(t, []int{5, 1, 1}, []int{yielded, failed, reloads})

	unbounded := NewStatusTracker(0)
	unbounded.IncrementYielded()
	assert.Equal(t, "[1]", unbounded.Bar())
	assert.False(t, unbounded.LimitReached())
}

func TestProgressDisplay(t *testing.T) {
	captureOutput(t)
	buf := &bytes.Buffer{}
	p := NewProgressDisplay(buf, "咖啡", 2, true)

	p.CompleteNote(models.Note{
		Detail: models.NoteDetail{Title: "手冲入门", Likes: 12},
		Images: []string{"a", "b"},
	}, "notes/65a1")
	p.FailNote("https://www.xiaohongshu.com/explore/x", errors.New("gone"))
	p.Complete()

	out := buf.String()
	assert.Contains(t, out, "✓ 手冲入门 • ♥ 12 • notes/65a1")
	assert.Contains(t, out, "✗ Failed: https://www.xiaohongshu.com/explore/x - gone")
	assert.Contains(t, out, "Extracted 1 notes from 咖啡")
	assert.Contains(t, out, "2 images")
	assert.Contains(t, out, "1 notes failed")
}

func TestProgressDisplayLine(t *testing.T) {
	captureOutput(t)
	buf := &bytes.Buffer{}
	p := NewProgressDisplay(buf, "咖啡", 2, false)

	p.CompleteNote(models.Note{Detail: models.NoteDetail{Title: strings.Repeat("长", 30)}}, "")
	assert.Contains(t, buf.String(), "1/2")
	assert.Contains(t, buf.String(), "…")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h30m", formatDuration(90*time.Minute))
}

type recordingSender struct {
	sent []string
}

func (r *recordingSender) Send(title, message string) error {
	r.sent = append(r.sent, title+"|"+message)
	return errors.New("no notification daemon")
}

func TestNotifier(t *testing.T) {
	buf := captureOutput(t)
	sender := &recordingSender{}

	n := NewNotifierWithSender(sender, true)
	n.SendSuccess("Crawl complete", "20 notes")
	n.SendError("Crawl failed", "not logged in")
	assert.Equal(t, []string{"Crawl complete|20 notes", "Crawl failed|not logged in"}, sender.sent)
	assert.Contains(t, buf.String(), "Crawl complete: 20 notes")

	off := NewNotifierWithSender(sender, false)
	off.SendNotification("Resuming", "5 notes")
	assert.Len(t, sender.sent, 2)
	assert.Contains(t, buf.String(), "Resuming: 5 notes")
}
