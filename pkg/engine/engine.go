// Package engine is the entry point for everything the CLI exposes: login,
// search and profile extraction, single note and comment fetches, and
// action replay. Every call runs on its own browser session, so an Engine
// is safe for concurrent use.
package engine

import (
	"context"
	"time"

	"rednote/pkg/actions"
	"rednote/pkg/auth"
	"rednote/pkg/browser"
	"rednote/pkg/config"
	"rednote/pkg/crawler"
	"rednote/pkg/extractor"
	"rednote/pkg/humanize"
	"rednote/pkg/logger"
	"rednote/pkg/metrics"
	"rednote/pkg/models"
	"rednote/pkg/platform"
	"rednote/pkg/ratelimit"
	"rednote/pkg/retry"
	"rednote/pkg/selectors"
	"rednote/pkg/session"
)

// Options wires an Engine. Launcher and Store are required.
type Options struct {
	Launcher  browser.Launcher
	Store     auth.CookieStore
	Selectors *selectors.Set
	Pacer     *humanize.Pacer
	Config    *config.Config
	Metrics   *metrics.Metrics
	Logger    logger.Logger
	// Media resolves images when withImages is set; built from the media
	// config when nil.
	Media crawler.MediaResolver
}

// Engine runs the extraction and interaction flows.
type Engine struct {
	opts    Options
	ext     extractor.Extractor
	replay  *actions.Replayer
	crawler *crawler.Crawler
	log     logger.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Selectors == nil {
		opts.Selectors = selectors.Default()
	}
	if opts.Pacer == nil {
		opts.Pacer = humanize.NewPacer(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	cfg := opts.Config
	if opts.Media == nil {
		client := extractor.NewMediaClient(cfg.Media.Timeout, cfg.Browser.UserAgent,
			retry.FromConfig(cfg.Retry, "media", opts.Logger), opts.Logger)
		opts.Media = extractor.NewMediaFetcher(client,
			ratelimit.ForMedia(cfg.Media.RequestsPerMinute, cfg.Media.BurstSize),
			cfg.Media.Concurrency, opts.Logger)
	}

	timeout := cfg.Crawl.ElementTimeout
	ext := extractor.NewDOMExtractor(opts.Selectors, opts.Pacer, timeout, opts.Logger)
	replay := actions.NewReplayer(opts.Selectors, opts.Pacer, timeout, opts.Metrics, opts.Logger)

	return &Engine{
		opts:   opts,
		ext:    ext,
		replay: replay,
		crawler: crawler.New(crawler.Options{
			Extractor: ext,
			Replayer:  replay,
			Media:     opts.Media,
			Selectors: opts.Selectors,
			Pacer:     opts.Pacer,
			Config:    cfg.Crawl,
			Metrics:   opts.Metrics,
			Logger:    opts.Logger,
		}),
		log: opts.Logger,
	}
}

// NewSession builds a session manager that no other call shares.
func (e *Engine) NewSession() *session.Manager {
	return session.New(session.Options{
		Launcher:  e.opts.Launcher,
		Store:     e.opts.Store,
		Selectors: e.opts.Selectors,
		Pacer:     e.opts.Pacer,
		Config:    e.opts.Config,
		Logger:    e.log,
		Metrics:   e.opts.Metrics,
	})
}

// Login runs the interactive login. A zero timeout uses the configured one.
func (e *Engine) Login(ctx context.Context, timeout time.Duration) error {
	return e.NewSession().Login(ctx, timeout)
}

// SearchAndExtract extracts up to limit notes from the search results for
// keyword.
func (e *Engine) SearchAndExtract(ctx context.Context, keyword string, sort models.SortOrder, period models.Period, limit int, withImages bool) ([]models.Note, error) {
	src := crawler.Source{Keyword: keyword, Sort: sort, Period: period}
	return e.crawler.Collect(ctx, e.NewSession(), src, limit, withImages)
}

// ListUserItemsAndExtract extracts up to limit notes from a user's profile.
func (e *Engine) ListUserItemsAndExtract(ctx context.Context, profileURL string, limit int, withImages bool) ([]models.Note, error) {
	return e.crawler.Collect(ctx, e.NewSession(), crawler.Source{ProfileURL: profileURL}, limit, withImages)
}

// GetItem fetches one note. urlOrShareText may be a note URL or share text
// containing one.
func (e *Engine) GetItem(ctx context.Context, urlOrShareText string) (models.NoteDetail, error) {
	url := platform.ExtractURL(urlOrShareText)
	mgr := e.NewSession()

	var detail models.NoteDetail
	err := mgr.With(ctx, func(ctx context.Context, page browser.Page) error {
		if err := mgr.Navigate(ctx, url); err != nil {
			return err
		}
		d, err := e.ext.ExtractDetail(ctx, page)
		logger.LogExtraction(mgr.Logger(), url, err)
		if err != nil {
			return err
		}
		d.URL = url
		detail = d
		return nil
	})
	return detail, err
}

// GetComments reads the comments shown on a note.
func (e *Engine) GetComments(ctx context.Context, urlOrShareText string) ([]models.Comment, error) {
	url := platform.ExtractURL(urlOrShareText)
	mgr := e.NewSession()

	var comments []models.Comment
	err := mgr.With(ctx, func(ctx context.Context, page browser.Page) error {
		if err := mgr.Navigate(ctx, url); err != nil {
			return err
		}
		c, err := e.ext.ExtractComments(ctx, page)
		if err != nil {
			return err
		}
		comments = c
		return nil
	})
	return comments, err
}

// PostActions replays reqs in order and reports success per request. Only
// a failure to establish the session is returned as an error. An empty
// batch never opens a browser.
func (e *Engine) PostActions(ctx context.Context, reqs []models.ActionRequest) ([]bool, error) {
	if len(reqs) == 0 {
		return []bool{}, nil
	}
	mgr := e.NewSession()
	var results []bool
	err := mgr.With(ctx, func(ctx context.Context, page browser.Page) error {
		results = e.replay.PostActionList(ctx, mgr, page, reqs)
		return nil
	})
	return results, err
}

// Iterate returns an iteration on a fresh session. The caller must call
// Init first and Teardown when done.
func (e *Engine) Iterate() *crawler.Iterator {
	return e.crawler.Iterator(e.NewSession())
}
