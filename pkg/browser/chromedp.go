package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"rednote/pkg/auth"
	"rednote/pkg/logger"
)

// ChromeLauncher launches a local Chrome through chromedp.
type ChromeLauncher struct {
	log logger.Logger
}

// NewChromeLauncher creates a launcher. A nil logger uses the global one.
func NewChromeLauncher(log logger.Logger) *ChromeLauncher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ChromeLauncher{log: log}
}

func (l *ChromeLauncher) allocatorOptions(opts LaunchOptions) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-features", "Translate"),
	)
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}

// Launch starts Chrome and waits until its first target is attached or ctx
// is done.
func (l *ChromeLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		l.log.Debug(fmt.Sprintf(format, args...))
	}))

	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(browserCtx)
	}()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		<-started
		return nil, fmt.Errorf("browser launch cancelled: %w", ctx.Err())
	}

	l.log.WithFields(map[string]interface{}{
		"headless": opts.Headless,
	}).Debug("Browser started")

	return &chromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		log:         l.log,
	}, nil
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	log         logger.Logger

	closeOnce sync.Once
	closeErr  error
}

func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	return b.newPage(ctx)
}

func (b *chromeBrowser) NewIsolatedPage(ctx context.Context) (Page, error) {
	return b.newPage(ctx, chromedp.WithNewBrowserContext())
}

func (b *chromeBrowser) newPage(ctx context.Context, opts ...chromedp.ContextOption) (Page, error) {
	if b.ctx.Err() != nil {
		return nil, ErrClosed
	}
	tabCtx, cancel := chromedp.NewContext(b.ctx, opts...)
	p := &chromePage{ctx: tabCtx, cancel: cancel}
	// Running an empty action list attaches the new target.
	if err := p.run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return p, nil
}

func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		closeCtx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
		defer cancel()
		if err := chromedp.Cancel(closeCtx); err != nil && b.ctx.Err() == nil {
			b.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		b.cancel()
		b.allocCancel()
		b.log.Debug("Browser closed")
	})
	return b.closeErr
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	mouseX, mouseY float64
	closeOnce      sync.Once
}

// run executes actions on the tab, bounded by both the tab's lifetime and
// the caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// eval calls a JavaScript function with JSON-encoded arguments.
func (p *chromePage) eval(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		encoded[i] = string(b)
	}
	expr := fmt.Sprintf("(%s)(%s)", fn, strings.Join(encoded, ","))
	return p.run(ctx, chromedp.Evaluate(expr, res))
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) Reload(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, chromedp.Location(&u))
	return u, err
}

func (p *chromePage) WaitReady(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) WaitGone(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitNotPresent(selector, chromedp.ByQuery))
}

const jsExists = `function(sel) { return document.querySelector(sel) !== null; }`

func (p *chromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := p.eval(ctx, jsExists, &ok, selector)
	return ok, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

type lookup struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

const jsText = `function(sel) {
	const el = document.querySelector(sel);
	return el === null ? {found: false, value: ""} : {found: true, value: (el.textContent || "").trim()};
}`

func (p *chromePage) Text(ctx context.Context, selector string) (string, error) {
	var res lookup
	if err := p.eval(ctx, jsText, &res, selector); err != nil {
		return "", err
	}
	if !res.Found {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return res.Value, nil
}

const jsAttribute = `function(sel, name) {
	const el = document.querySelector(sel);
	if (el === null) return null;
	const v = el.getAttribute(name);
	return v === null ? {found: false, value: ""} : {found: true, value: v};
}`

func (p *chromePage) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var res *lookup
	if err := p.eval(ctx, jsAttribute, &res, selector, name); err != nil {
		return "", false, err
	}
	if res == nil {
		return "", false, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return res.Value, res.Found, nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

const jsClickNth = `function(sel, index, child) {
	const items = document.querySelectorAll(sel);
	if (index >= items.length) return false;
	const target = child === "" ? items[index] : items[index].querySelector(child);
	if (target === null) return false;
	target.scrollIntoView({block: "center"});
	target.click();
	return true;
}`

func (p *chromePage) ClickNth(ctx context.Context, selector string, index int, child string) error {
	var ok bool
	if err := p.eval(ctx, jsClickNth, &ok, selector, index, child); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s[%d] %s", ErrElementNotFound, selector, index, child)
	}
	return nil
}

const jsClickText = `function(container, text) {
	const root = document.querySelector(container);
	if (root === null) return false;
	for (const el of root.querySelectorAll("*")) {
		if ((el.textContent || "").trim() === text && el.children.length === 0) {
			el.click();
			return true;
		}
	}
	return false;
}`

func (p *chromePage) ClickText(ctx context.Context, container, text string) error {
	var ok bool
	if err := p.eval(ctx, jsClickText, &ok, container, text); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrElementNotFound, text, container)
	}
	return nil
}

func (p *chromePage) Hover(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	var x, y float64
	err := p.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(1)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to get box model for %s: %w", selector, err)
			}
			q := box.Content
			if len(q) < 8 {
				return fmt.Errorf("%w: %s has no box", ErrElementNotFound, selector)
			}
			x = (q[0] + q[2] + q[4] + q[6]) / 4
			y = (q[1] + q[3] + q[5] + q[7]) / 4
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	)
	if err == nil {
		p.setMouse(x, y)
	}
	return err
}

const jsFill = `function(sel, value) {
	const el = document.querySelector(sel);
	if (el === null) return false;
	el.focus();
	if (el.isContentEditable) {
		el.textContent = value;
	} else {
		el.value = value;
	}
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return true;
}`

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	var ok bool
	if err := p.eval(ctx, jsFill, &ok, selector, value); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return nil
}

func (p *chromePage) setMouse(x, y float64) {
	p.mu.Lock()
	p.mouseX, p.mouseY = x, y
	p.mu.Unlock()
}

func (p *chromePage) MouseMove(ctx context.Context, x, y float64) error {
	if err := p.run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y)); err != nil {
		return err
	}
	p.setMouse(x, y)
	return nil
}

func (p *chromePage) MouseWheel(ctx context.Context, dx, dy float64) error {
	p.mu.Lock()
	x, y := p.mouseX, p.mouseY
	p.mu.Unlock()
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, x, y).
			WithDeltaX(dx).
			WithDeltaY(dy).
			Do(ctx)
	}))
}

func (p *chromePage) ScrollHeight(ctx context.Context) (float64, error) {
	var h float64
	err := p.run(ctx, chromedp.Evaluate(`document.body ? document.body.scrollHeight : 0`, &h))
	return h, err
}

func (p *chromePage) Viewport(ctx context.Context) (float64, float64, error) {
	var size []float64
	if err := p.run(ctx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &size)); err != nil {
		return 0, 0, err
	}
	if len(size) != 2 {
		return 0, 0, fmt.Errorf("unexpected viewport %v", size)
	}
	return size[0], size[1], nil
}

func (p *chromePage) Cookies(ctx context.Context) ([]auth.Cookie, error) {
	var out []auth.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		out = make([]auth.Cookie, 0, len(cookies))
		for _, c := range cookies {
			expires := c.Expires
			if c.Session {
				expires = -1
			}
			out = append(out, auth.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return out, nil
}

// cookiePath is the path a cookie is attached with; Chrome scopes an
// empty path to the current document, which is never what a jar means.
func cookiePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []auth.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     cookiePath(c.Path),
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			param.SameSite = network.CookieSameSite(c.SameSite)
		}
		if !c.IsSession() {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			param.Expires = &expires
		}
		params = append(params, param)
	}
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		if p.ctx.Err() == nil {
			closeCtx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
			_ = chromedp.Cancel(closeCtx)
			cancel()
		}
		p.cancel()
	})
	return nil
}
