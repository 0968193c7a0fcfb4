package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	errs "rednote/pkg/errors"
)

func TestWaitForMapsDeadlineToTimeout(t *testing.T) {
	err := WaitFor(context.Background(), 10*time.Millisecond, "#noteContainer", func(ctx context.Context, sel string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, errs.IsType(err, errs.ErrorTypeTimeout))
	assert.Contains(t, err.Error(), "#noteContainer")
}

func TestWaitForPassesCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitFor(ctx, time.Second, ".x", func(ctx context.Context, sel string) error {
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForWrapsOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	err := WaitFor(context.Background(), time.Second, ".x", func(ctx context.Context, sel string) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, errs.IsType(err, errs.ErrorTypeTimeout))
}

func TestAllocatorOptions(t *testing.T) {
	l := NewChromeLauncher(nil)
	base := len(l.allocatorOptions(LaunchOptions{}))
	full := len(l.allocatorOptions(LaunchOptions{ExecPath: "/usr/bin/chromium", UserAgent: "ua", WindowWidth: 1280, WindowHeight: 800}))
	assert.Equal(t, base+3, full)
}

func TestCookiePathDefaultsToRoot(t *testing.T) {
	assert.Equal(t, "/", cookiePath(""))
	assert.Equal(t, "/explore", cookiePath("/explore"))
}
