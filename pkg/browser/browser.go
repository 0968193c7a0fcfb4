// Package browser abstracts the single Chrome instance a session drives.
//
// Everything above this package talks to Page; the chromedp implementation
// lives in chromedp.go and an in-memory fake for tests lives in the
// browsertest subpackage.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rednote/pkg/auth"
	errs "rednote/pkg/errors"
)

// ErrElementNotFound is returned when a query matched nothing.
var ErrElementNotFound = errors.New("element not found")

// ErrClosed is returned by operations on a closed page or browser.
var ErrClosed = errors.New("browser closed")

// LaunchOptions configures a browser launch.
type LaunchOptions struct {
	Headless     bool
	ExecPath     string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser owns a running browser process.
type Browser interface {
	// NewPage opens a tab in the default browser context, sharing its
	// cookies with every other such tab.
	NewPage(ctx context.Context) (Page, error)
	// NewIsolatedPage opens a tab in a fresh browser context that starts
	// with an empty cookie jar. Closing the page disposes the context.
	NewIsolatedPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one tab. Methods that wait honour the deadline of ctx.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	URL(ctx context.Context) (string, error)

	// WaitReady waits until selector is present in the DOM.
	WaitReady(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string) error
	WaitGone(ctx context.Context, selector string) error

	Exists(ctx context.Context, selector string) (bool, error)
	// HTML returns a snapshot of the whole document.
	HTML(ctx context.Context) (string, error)
	// Text returns the trimmed text of the first match.
	Text(ctx context.Context, selector string) (string, error)
	// Attribute reports the attribute of the first match and whether it was set.
	Attribute(ctx context.Context, selector, name string) (string, bool, error)

	Click(ctx context.Context, selector string) error
	// ClickNth clicks child inside the index-th match of selector. An empty
	// child clicks the match itself.
	ClickNth(ctx context.Context, selector string, index int, child string) error
	// ClickText clicks the first element under container whose trimmed text
	// equals text.
	ClickText(ctx context.Context, container, text string) error
	Hover(ctx context.Context, selector string) error
	// Fill replaces the value of an input or the text of a contenteditable.
	Fill(ctx context.Context, selector, value string) error

	MouseMove(ctx context.Context, x, y float64) error
	MouseWheel(ctx context.Context, dx, dy float64) error
	ScrollHeight(ctx context.Context) (float64, error)
	Viewport(ctx context.Context) (width, height float64, err error)

	Cookies(ctx context.Context) ([]auth.Cookie, error)
	SetCookies(ctx context.Context, cookies []auth.Cookie) error

	Close() error
}

// WaitFor runs wait with its own timeout and maps a timeout to a Timeout
// error naming the selector.
func WaitFor(ctx context.Context, timeout time.Duration, selector string, wait func(context.Context, string) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := wait(waitCtx, selector)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errs.IsType(err, errs.ErrorTypeTimeout) {
		return errs.Wrap(errs.ErrorTypeTimeout, err, "timed out after %s waiting for %q", timeout, selector)
	}
	return fmt.Errorf("failed waiting for %q: %w", selector, err)
}
