package browsertest

import (
	"context"
	"sync"

	"rednote/pkg/browser"
)

// Launcher hands out fake browsers whose pages come from NewPage.
type Launcher struct {
	mu       sync.Mutex
	launches []browser.LaunchOptions
	browsers []*Browser

	// NewPage builds the page for each NewPage call. The argument counts
	// pages opened through this launcher so far, starting at 0.
	NewPage func(n int) *FakePage
	// LaunchErr fails every launch when set.
	LaunchErr error

	pages int
}

// NewLauncher serves pages built by newPage.
func NewLauncher(newPage func(n int) *FakePage) *Launcher {
	return &Launcher{NewPage: newPage}
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches = append(l.launches, opts)
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	b := &Browser{launcher: l, jar: &cookieJar{}}
	l.browsers = append(l.browsers, b)
	return b, nil
}

// Launches returns the options of every launch.
func (l *Launcher) Launches() []browser.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.LaunchOptions(nil), l.launches...)
}

// Browsers returns every browser launched so far.
func (l *Launcher) Browsers() []*Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Browser(nil), l.browsers...)
}

// AllClosed reports whether every browser and page was closed.
func (l *Launcher) AllClosed() bool {
	for _, b := range l.Browsers() {
		if !b.Closed() {
			return false
		}
		for _, p := range b.Pages() {
			if !p.Closed() {
				return false
			}
		}
	}
	return true
}

func (l *Launcher) nextPage() *FakePage {
	l.mu.Lock()
	n := l.pages
	l.pages++
	build := l.NewPage
	l.mu.Unlock()
	if build == nil {
		return NewPage("about:blank", "<html><body></body></html>")
	}
	return build(n)
}

// Browser is a fake browser.Browser. Pages from NewPage share the
// default context's cookie jar; each isolated page has its own.
type Browser struct {
	launcher *Launcher
	jar      *cookieJar

	mu     sync.Mutex
	pages  []*FakePage
	closed int
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	return b.open(b.jar)
}

func (b *Browser) NewIsolatedPage(ctx context.Context) (browser.Page, error) {
	return b.open(&cookieJar{})
}

func (b *Browser) open(jar *cookieJar) (browser.Page, error) {
	b.mu.Lock()
	if b.closed > 0 {
		b.mu.Unlock()
		return nil, browser.ErrClosed
	}
	b.mu.Unlock()

	p := b.launcher.nextPage()
	p.useJar(jar)
	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p, nil
}

// Pages returns the pages opened in this browser.
func (b *Browser) Pages() []*FakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*FakePage(nil), b.pages...)
}

// Close closes the browser and every page still open.
func (b *Browser) Close() error {
	b.mu.Lock()
	b.closed++
	pages := append([]*FakePage(nil), b.pages...)
	b.mu.Unlock()
	for _, p := range pages {
		_ = p.Close()
	}
	return nil
}

// Closed reports whether Close was called at least once.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed > 0
}

// CloseCount returns how many times Close was called.
func (b *Browser) CloseCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

var _ browser.Launcher = (*Launcher)(nil)
