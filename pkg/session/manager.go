package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rednote/pkg/auth"
	"rednote/pkg/browser"
	"rednote/pkg/config"
	errs "rednote/pkg/errors"
	"rednote/pkg/humanize"
	"rednote/pkg/logger"
	"rednote/pkg/metrics"
	"rednote/pkg/platform"
	"rednote/pkg/retry"
	"rednote/pkg/selectors"
)

// captchaSettle is how long to wait on the captcha page before reloading.
const captchaSettle = 2 * time.Second

// markerProbe bounds the check for the login marker on an already loaded page.
const markerProbe = 5 * time.Second

// Options wires a Manager.
type Options struct {
	Launcher  browser.Launcher
	Store     auth.CookieStore
	Selectors *selectors.Set
	Pacer     *humanize.Pacer
	Config    *config.Config
	Logger    logger.Logger
	Metrics   *metrics.Metrics
}

// Manager owns one browser and at most one live page. It is not safe for
// concurrent use; concurrent callers each build their own Manager.
type Manager struct {
	launcher browser.Launcher
	store    auth.CookieStore
	sel      *selectors.Set
	pacer    *humanize.Pacer
	cfg      *config.Config
	metrics  *metrics.Metrics

	id  string
	log logger.Logger

	mu      sync.Mutex
	browser browser.Browser
	page    browser.Page
}

// New creates a Manager. Missing selectors, pacer and config fall back to
// their defaults.
func New(opts Options) *Manager {
	if opts.Selectors == nil {
		opts.Selectors = selectors.Default()
	}
	if opts.Pacer == nil {
		opts.Pacer = humanize.NewPacer(nil)
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	id := uuid.NewString()
	return &Manager{
		launcher: opts.Launcher,
		store:    opts.Store,
		sel:      opts.Selectors,
		pacer:    opts.Pacer,
		cfg:      opts.Config,
		metrics:  opts.Metrics,
		id:       id,
		log:      opts.Logger.WithField("session_id", id),
	}
}

// ID identifies the session in logs.
func (m *Manager) ID() string {
	return m.id
}

// Logger returns the session-scoped logger.
func (m *Manager) Logger() logger.Logger {
	return m.log
}

// Page returns the live page, or nil.
func (m *Manager) Page() browser.Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page
}

func (m *Manager) launch(ctx context.Context, headless bool) error {
	b, err := m.launcher.Launch(ctx, browser.LaunchOptions{
		Headless:     headless,
		ExecPath:     m.cfg.Browser.ExecPath,
		UserAgent:    m.cfg.Browser.UserAgent,
		WindowWidth:  m.cfg.Browser.WindowWidth,
		WindowHeight: m.cfg.Browser.WindowHeight,
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	m.mu.Lock()
	m.browser = b
	m.mu.Unlock()
	m.metrics.SessionOpened()
	logger.LogComponentStart(m.log, "browser", map[string]interface{}{"headless": headless})
	return nil
}

// openPage opens a page and attaches the stored cookie jar to it. An
// isolated page gets its own browser context, so nothing a previous page
// collected leaks into it.
func (m *Manager) openPage(ctx context.Context, isolated bool) (browser.Page, error) {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()
	if b == nil {
		return nil, browser.ErrClosed
	}

	newPage := b.NewPage
	if isolated {
		newPage = b.NewIsolatedPage
	}
	page, err := newPage(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.page = page
	m.mu.Unlock()

	if err := m.restoreCookies(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (m *Manager) restoreCookies(ctx context.Context, page browser.Page) error {
	if m.store == nil {
		return nil
	}
	jar, err := m.store.Load(ctx)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to load cookies")
	}
	now := time.Now()
	live := make([]auth.Cookie, 0, len(jar))
	for _, c := range jar {
		if !c.Expired(now) {
			live = append(live, c)
		}
	}
	if len(live) == 0 {
		return nil
	}
	if err := page.SetCookies(ctx, live); err != nil {
		return err
	}
	m.log.DebugWithFields("cookies restored", map[string]interface{}{
		"count":   len(live),
		"expired": len(jar) - len(live),
	})
	return nil
}

// SaveCookies persists the jar of the live page.
func (m *Manager) SaveCookies(ctx context.Context) error {
	page := m.Page()
	if page == nil {
		return browser.ErrClosed
	}
	return m.saveCookies(ctx, page)
}

func (m *Manager) saveCookies(ctx context.Context, page browser.Page) error {
	if m.store == nil {
		return nil
	}
	jar, err := page.Cookies(ctx)
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, jar); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to save cookies")
	}
	m.log.InfoWithFields("cookies saved", map[string]interface{}{"count": len(jar)})
	return nil
}

// Navigate loads url in the live page with the configured timeout and
// retry policy.
func (m *Manager) Navigate(ctx context.Context, url string) error {
	page := m.Page()
	if page == nil {
		return errs.New(errs.ErrorTypeNotAuthenticated, "no live session")
	}
	return m.navigate(ctx, page, url)
}

func (m *Manager) navigate(ctx context.Context, page browser.Page, url string) error {
	rc := retry.FromConfig(m.cfg.Retry, "navigate", m.log)
	return retry.Do(ctx, func(ctx context.Context, attempt int) error {
		navCtx, cancel := context.WithTimeout(ctx, m.cfg.Browser.NavigationTimeout)
		defer cancel()

		start := time.Now()
		err := page.Navigate(navCtx, url)
		logger.LogNavigation(m.log, url, time.Since(start), err)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.Wrap(errs.ErrorTypeNavigation, err, "failed to open %s", url)
	}, rc)
}

// loggedIn checks the sidebar marker on a loaded page.
func (m *Manager) loggedIn(ctx context.Context, page browser.Page, timeout time.Duration) bool {
	if err := browser.WaitFor(ctx, timeout, m.sel.LoginMarker, page.WaitReady); err != nil {
		return false
	}
	text, err := page.Text(ctx, m.sel.LoginMarker)
	return err == nil && text == m.sel.LoginMarkerText
}

// bounceCaptcha reloads once when the site parked the page on its captcha.
func (m *Manager) bounceCaptcha(ctx context.Context, page browser.Page) error {
	url, err := page.URL(ctx)
	if err != nil || !platform.IsCaptchaURL(url, m.sel.CaptchaPath) {
		return err
	}
	m.log.WarnWithFields("captcha page detected, reloading", map[string]interface{}{"url": url})
	if err := m.pacer.Sleep(ctx, captchaSettle); err != nil {
		return err
	}
	return page.Reload(ctx)
}

// EnsureSession returns an authenticated page, launching a browser with the
// stored cookies when none is live. It never logs in interactively: a
// missing login yields NotAuthenticated and releases the browser.
func (m *Manager) EnsureSession(ctx context.Context) (page browser.Page, err error) {
	if page := m.Page(); page != nil {
		return page, nil
	}
	defer func() {
		if err != nil {
			_ = m.Cleanup()
		}
	}()

	if err := m.launch(ctx, m.cfg.Browser.Headless); err != nil {
		return nil, err
	}
	page, err = m.openPage(ctx, false)
	if err != nil {
		return nil, err
	}
	if err := m.navigate(ctx, page, platform.BaseURL); err != nil {
		return nil, err
	}
	if err := m.bounceCaptcha(ctx, page); err != nil {
		return nil, err
	}
	if !m.loggedIn(ctx, page, markerProbe) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.New(errs.ErrorTypeNotAuthenticated, "not logged in, run the login command first")
	}

	m.log.Debug("session ready")
	return page, nil
}

// Login runs the interactive QR login in a fresh, visible browser and
// persists the cookie jar. timeout bounds each wait; the wait for the scan
// confirmation is LoginWaitMultiplier times longer. The browser is always
// released before returning.
func (m *Manager) Login(ctx context.Context, timeout time.Duration) (err error) {
	if timeout <= 0 {
		timeout = m.cfg.Session.LoginTimeout
	}
	_ = m.Cleanup()
	defer func() {
		m.metrics.ObserveLogin(err == nil)
		if cerr := m.Cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := m.launch(ctx, false); err != nil {
		return errs.Wrap(errs.ErrorTypeLoginFailed, err, "login failed")
	}

	attempts := m.cfg.Session.LoginAttempts
	if attempts <= 0 {
		attempts = 3
	}
	rc := &retry.Config{
		MaxAttempts: attempts,
		Backoff:     &retry.ConstantBackoff{Delay: m.cfg.Session.LoginRetryDelay},
		RetryIf:     retry.Always,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			m.closePage()
		},
		Name:   "login",
		Logger: m.log,
	}

	err = retry.Do(ctx, func(ctx context.Context, attempt int) error {
		return m.loginAttempt(ctx, timeout)
	}, rc)
	if err != nil {
		m.log.WithError(err).Error("login failed")
		return errs.Wrap(errs.ErrorTypeLoginFailed, err, "login failed after %d attempts", attempts)
	}
	m.log.Info("login succeeded")
	return nil
}

func (m *Manager) loginAttempt(ctx context.Context, timeout time.Duration) error {
	page, err := m.openPage(ctx, true)
	if err != nil {
		return err
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.Browser.NavigationTimeout)
	err = page.Navigate(navCtx, platform.ExploreURL)
	cancel()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNavigation, err, "failed to open explore page")
	}

	if m.loggedIn(ctx, page, min(timeout, markerProbe)) {
		m.log.Info("already logged in")
		return m.saveCookies(ctx, page)
	}

	if err := browser.WaitFor(ctx, timeout, m.sel.LoginContainer, page.WaitVisible); err != nil {
		return fmt.Errorf("login prompt did not appear: %w", err)
	}
	if err := browser.WaitFor(ctx, timeout, m.sel.QRCode, page.WaitVisible); err != nil {
		return fmt.Errorf("qr code did not appear: %w", err)
	}
	m.saveQRCode(ctx, page)
	m.log.Info("waiting for the qr code to be scanned")

	multiplier := m.cfg.Session.LoginWaitMultiplier
	if multiplier <= 0 {
		multiplier = 6
	}
	if !m.loggedIn(ctx, page, timeout*time.Duration(multiplier)) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.New(errs.ErrorTypeTimeout, "login was not confirmed in time")
	}
	return m.saveCookies(ctx, page)
}

// saveQRCode writes a data: URL QR image to the configured path so a
// headless operator can scan it. Failures are only logged.
func (m *Manager) saveQRCode(ctx context.Context, page browser.Page) {
	path := m.cfg.Session.QRCodePath
	if path == "" {
		return
	}
	src, ok, err := page.Attribute(ctx, m.sel.QRCode, "src")
	if err != nil || !ok {
		return
	}
	data, err := decodeDataURL(src)
	if err != nil {
		m.log.WithError(err).Debug("qr code is not an inline image")
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		m.log.WithError(err).Warn("failed to create qr code directory")
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		m.log.WithError(err).Warn("failed to write qr code")
		return
	}
	m.log.InfoWithFields("qr code written", map[string]interface{}{"path": path})
}

func decodeDataURL(src string) ([]byte, error) {
	if !strings.HasPrefix(src, "data:") {
		return nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(src, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return []byte(payload), nil
	}
	return base64.StdEncoding.DecodeString(payload)
}

func (m *Manager) closePage() {
	m.mu.Lock()
	page := m.page
	m.page = nil
	m.mu.Unlock()
	if page != nil {
		_ = page.Close()
	}
}

// Cleanup closes the page and the browser. It is idempotent.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	page, b := m.page, m.browser
	m.page, m.browser = nil, nil
	m.mu.Unlock()

	var pageErr, browserErr error
	if page != nil {
		pageErr = page.Close()
	}
	if b != nil {
		browserErr = b.Close()
		m.metrics.SessionClosed()
		logger.LogComponentStop(m.log, "browser", "cleanup")
	}
	if browserErr != nil {
		return browserErr
	}
	return pageErr
}

// With runs fn against an authenticated page and always cleans up.
func (m *Manager) With(ctx context.Context, fn func(ctx context.Context, page browser.Page) error) error {
	defer m.Cleanup()
	page, err := m.EnsureSession(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, page)
}
