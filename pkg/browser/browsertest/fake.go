// Package browsertest provides an in-memory browser.Page backed by goquery.
//
// A FakePage holds one HTML document. Tests script behaviour through the
// exported hooks: Routes decide what Navigate loads, OnClick handlers mutate
// the document the way the real site would, and OnWheel appends feed items.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"rednote/pkg/auth"
	"rednote/pkg/browser"
	errs "rednote/pkg/errors"
)

// FakePage implements browser.Page over a goquery document.
type FakePage struct {
	mu     sync.Mutex
	doc    *goquery.Document
	url    string
	closed bool
	calls  []string
	fills  map[string][]string
	jar    *cookieJar

	// Routes maps a URL to the HTML Navigate loads. A URL without a route
	// keeps the current document.
	Routes map[string]string
	// NavigateErr fails Navigate for a URL.
	NavigateErr map[string]error
	// OnNavigate runs after the document for url is loaded.
	OnNavigate func(p *FakePage, url string)
	// OnClick runs when a selector passed to Click matches.
	OnClick map[string]func(p *FakePage) error
	// OnClickNth runs for ClickNth after the target was found.
	OnClickNth func(p *FakePage, selector string, index int) error
	// OnClickText runs for ClickText after the label was found.
	OnClickText func(p *FakePage, text string) error
	// OnHover runs when a selector passed to Hover matches.
	OnHover map[string]func(p *FakePage)
	// OnWheel runs on every MouseWheel call.
	OnWheel func(p *FakePage, dy float64)
	// OnMouseMove runs on every MouseMove call; an error fails the move.
	OnMouseMove func(p *FakePage) error
	// BeforeWait runs before any wait checks the document, so a test can
	// make an element appear "later".
	BeforeWait func(p *FakePage, selector string)
	// OnReload runs on Reload.
	OnReload func(p *FakePage)
}

// NewPage returns a page showing html at url.
func NewPage(url, html string) *FakePage {
	p := &FakePage{
		url:    url,
		fills:  map[string][]string{},
		jar:    &cookieJar{},
		Routes: map[string]string{},
	}
	p.setHTMLLocked(html)
	return p
}

// cookieJar is the cookie storage of one browser context.
type cookieJar struct {
	mu      sync.Mutex
	cookies []auth.Cookie
}

func (j *cookieJar) get() []auth.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]auth.Cookie(nil), j.cookies...)
}

func (j *cookieJar) set(cookies []auth.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = append([]auth.Cookie(nil), cookies...)
}

func (j *cookieJar) add(cookies []auth.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = auth.Normalize(append(j.cookies, cookies...))
}

func (p *FakePage) contextJar() *cookieJar {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jar
}

// useJar moves the page into the browser context owning jar.
func (p *FakePage) useJar(jar *cookieJar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jar = jar
}

func (p *FakePage) setHTMLLocked(html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// goquery only fails on reader errors, which a strings.Reader never has.
		panic(err)
	}
	p.doc = doc
}

// SetHTML replaces the whole document.
func (p *FakePage) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setHTMLLocked(html)
}

// SetURL changes the current URL without touching the document.
func (p *FakePage) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Append adds an HTML fragment to every match of selector.
func (p *FakePage) Append(selector, fragment string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(selector).AppendHtml(fragment)
}

// Remove deletes every match of selector.
func (p *FakePage) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(selector).Remove()
}

// SetAttr sets an attribute on every match of selector.
func (p *FakePage) SetAttr(selector, name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(selector).SetAttr(name, value)
}

// Count returns the number of matches of selector.
func (p *FakePage) Count(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find(selector).Length()
}

// Calls returns the recorded call log, e.g. "click .btn".
func (p *FakePage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// CallCount counts log entries starting with prefix.
func (p *FakePage) CallCount(prefix string) int {
	n := 0
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Fills returns every value passed to Fill for selector, in order.
func (p *FakePage) Fills(selector string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.fills[selector]...)
}

// Closed reports whether Close was called.
func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Jar returns the cookies of the page's browser context.
func (p *FakePage) Jar() []auth.Cookie {
	return p.contextJar().get()
}

// SetJar replaces the context cookies, as if the site had set them.
func (p *FakePage) SetJar(cookies []auth.Cookie) {
	p.contextJar().set(cookies)
}

func (p *FakePage) record(format string, args ...interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return browser.ErrClosed
	}
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
	return nil
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.record("navigate %s", url); err != nil {
		return err
	}
	p.mu.Lock()
	if err := p.NavigateErr[url]; err != nil {
		p.mu.Unlock()
		return err
	}
	p.url = url
	if html, ok := p.Routes[url]; ok {
		p.setHTMLLocked(html)
	}
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *FakePage) Reload(ctx context.Context) error {
	if err := p.record("reload"); err != nil {
		return err
	}
	p.mu.Lock()
	hook := p.OnReload
	if html, ok := p.Routes[p.url]; ok && hook == nil {
		p.setHTMLLocked(html)
	}
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *FakePage) wait(ctx context.Context, selector string, present bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	hook := p.BeforeWait
	p.mu.Unlock()
	if hook != nil {
		hook(p, selector)
	}
	if (p.Count(selector) > 0) == present {
		return nil
	}
	return errs.Wrap(errs.ErrorTypeTimeout, context.DeadlineExceeded, "waiting for %q", selector)
}

func (p *FakePage) WaitReady(ctx context.Context, selector string) error {
	if err := p.record("wait %s", selector); err != nil {
		return err
	}
	return p.wait(ctx, selector, true)
}

func (p *FakePage) WaitVisible(ctx context.Context, selector string) error {
	if err := p.record("wait %s", selector); err != nil {
		return err
	}
	return p.wait(ctx, selector, true)
}

func (p *FakePage) WaitGone(ctx context.Context, selector string) error {
	if err := p.record("waitgone %s", selector); err != nil {
		return err
	}
	return p.wait(ctx, selector, false)
}

func (p *FakePage) Exists(ctx context.Context, selector string) (bool, error) {
	return p.Count(selector) > 0, nil
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", browser.ErrClosed
	}
	return goquery.OuterHtml(p.doc.Selection)
}

func (p *FakePage) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return strings.TrimSpace(sel.Text()), nil
}

func (p *FakePage) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false, fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	v, ok := sel.Attr(name)
	if !ok {
		// The HTML parser stores foreign attributes such as xlink:href
		// under their local name.
		if _, local, found := strings.Cut(name, ":"); found {
			v, ok = sel.Attr(local)
		}
	}
	return v, ok, nil
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	if err := p.record("click %s", selector); err != nil {
		return err
	}
	if p.Count(selector) == 0 {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	p.mu.Lock()
	handler := p.OnClick[selector]
	p.mu.Unlock()
	if handler != nil {
		return handler(p)
	}
	return nil
}

func (p *FakePage) ClickNth(ctx context.Context, selector string, index int, child string) error {
	if err := p.record("clicknth %s %d", selector, index); err != nil {
		return err
	}
	p.mu.Lock()
	target := p.doc.Find(selector).Eq(index)
	if child != "" {
		target = target.Find(child)
	}
	found := target.Length() > 0
	hook := p.OnClickNth
	p.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %s[%d] %s", browser.ErrElementNotFound, selector, index, child)
	}
	if hook != nil {
		return hook(p, selector, index)
	}
	return nil
}

func (p *FakePage) ClickText(ctx context.Context, container, text string) error {
	if err := p.record("clicktext %s", text); err != nil {
		return err
	}
	p.mu.Lock()
	found := false
	p.doc.Find(container).Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() == 0 && strings.TrimSpace(s.Text()) == text {
			found = true
			return false
		}
		return true
	})
	hook := p.OnClickText
	p.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %q in %s", browser.ErrElementNotFound, text, container)
	}
	if hook != nil {
		return hook(p, text)
	}
	return nil
}

func (p *FakePage) Hover(ctx context.Context, selector string) error {
	if err := p.record("hover %s", selector); err != nil {
		return err
	}
	if p.Count(selector) == 0 {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	p.mu.Lock()
	hook := p.OnHover[selector]
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *FakePage) Fill(ctx context.Context, selector, value string) error {
	if err := p.record("fill %s", selector); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	p.fills[selector] = append(p.fills[selector], value)
	return nil
}

func (p *FakePage) MouseMove(ctx context.Context, x, y float64) error {
	if err := p.record("mousemove %.0f,%.0f", x, y); err != nil {
		return err
	}
	p.mu.Lock()
	hook := p.OnMouseMove
	p.mu.Unlock()
	if hook != nil {
		return hook(p)
	}
	return nil
}

func (p *FakePage) MouseWheel(ctx context.Context, dx, dy float64) error {
	if err := p.record("wheel %.0f", dy); err != nil {
		return err
	}
	p.mu.Lock()
	hook := p.OnWheel
	p.mu.Unlock()
	if hook != nil {
		hook(p, dy)
	}
	return nil
}

// ScrollHeight grows with the number of elements so appended feed items
// register as growth.
func (p *FakePage) ScrollHeight(ctx context.Context) (float64, error) {
	return float64(p.Count("*")) * 10, nil
}

func (p *FakePage) Viewport(ctx context.Context) (float64, float64, error) {
	return 1280, 800, nil
}

func (p *FakePage) Cookies(ctx context.Context) ([]auth.Cookie, error) {
	return p.Jar(), nil
}

func (p *FakePage) SetCookies(ctx context.Context, cookies []auth.Cookie) error {
	if err := p.record("setcookies %d", len(cookies)); err != nil {
		return err
	}
	p.contextJar().add(cookies)
	return nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

var _ browser.Page = (*FakePage)(nil)
