// Package crawler walks search and profile feeds: it scrolls to load more
// items, opens each unseen item once and extracts it.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rednote/pkg/actions"
	"rednote/pkg/browser"
	"rednote/pkg/config"
	errs "rednote/pkg/errors"
	"rednote/pkg/extractor"
	"rednote/pkg/humanize"
	"rednote/pkg/logger"
	"rednote/pkg/metrics"
	"rednote/pkg/models"
	"rednote/pkg/platform"
	"rednote/pkg/selectors"
)

var (
	// ErrEndOfFeed is returned by Next once the feed has nothing more to
	// yield.
	ErrEndOfFeed = errors.New("end of feed")
	// ErrNotStarted is returned by Next before Init.
	ErrNotStarted = errors.New("iteration not started")
)

const (
	betweenItemsMin = 500 * time.Millisecond
	betweenItemsMax = 1500 * time.Millisecond
)

// Session is the part of session.Manager a crawl drives.
type Session interface {
	EnsureSession(ctx context.Context) (browser.Page, error)
	Navigate(ctx context.Context, url string) error
	Cleanup() error
}

// MediaResolver turns media URLs into base64 payloads.
type MediaResolver interface {
	FetchEncoded(ctx context.Context, urls []string) ([]string, error)
}

// Source selects the feed to walk: search results for Keyword, or the
// notes of the profile at ProfileURL.
type Source struct {
	Keyword    string
	ProfileURL string
	Sort       models.SortOrder
	Period     models.Period
}

// URL returns the feed page address.
func (s Source) URL() (string, error) {
	switch {
	case strings.TrimSpace(s.Keyword) != "" && s.ProfileURL == "":
		return platform.SearchURL(strings.TrimSpace(s.Keyword)), nil
	case s.ProfileURL != "" && s.Keyword == "":
		if !platform.IsProfileURL(s.ProfileURL) {
			return "", fmt.Errorf("not a profile url: %s", s.ProfileURL)
		}
		return s.ProfileURL, nil
	default:
		return "", errors.New("feed source needs either a keyword or a profile url")
	}
}

func (s Source) isSearch() bool {
	return s.ProfileURL == ""
}

// Options wires a Crawler. Media may be nil when images are never requested.
type Options struct {
	Extractor extractor.Extractor
	Replayer  *actions.Replayer
	Media     MediaResolver
	Selectors *selectors.Set
	Pacer     *humanize.Pacer
	Config    config.CrawlConfig
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// Crawler holds what every crawl shares. Each crawl runs on its own
// Iterator and session.
type Crawler struct {
	ext     extractor.Extractor
	replay  *actions.Replayer
	media   MediaResolver
	sel     *selectors.Set
	pacer   *humanize.Pacer
	cfg     config.CrawlConfig
	metrics *metrics.Metrics
	log     logger.Logger
}

// New creates a Crawler.
func New(opts Options) *Crawler {
	if opts.Selectors == nil {
		opts.Selectors = selectors.Default()
	}
	if opts.Pacer == nil {
		opts.Pacer = humanize.NewPacer(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Config.ScrollSteps <= 0 {
		opts.Config.ScrollSteps = 10
	}
	if opts.Config.ElementTimeout <= 0 {
		opts.Config.ElementTimeout = 30 * time.Second
	}
	if opts.Config.MaxIdleReloads <= 0 {
		opts.Config.MaxIdleReloads = 30
	}
	if opts.Replayer == nil {
		opts.Replayer = actions.NewReplayer(opts.Selectors, opts.Pacer, opts.Config.ElementTimeout, opts.Metrics, opts.Logger)
	}
	return &Crawler{
		ext:     opts.Extractor,
		replay:  opts.Replayer,
		media:   opts.Media,
		sel:     opts.Selectors,
		pacer:   opts.Pacer,
		cfg:     opts.Config,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
}

// Collect walks src with its own iteration until limit notes were
// extracted or the feed ends. Items that fail to extract are skipped. The
// session is released before returning.
func (c *Crawler) Collect(ctx context.Context, sess Session, src Source, limit int, withImages bool) ([]models.Note, error) {
	if limit <= 0 {
		limit = c.cfg.DefaultLimit
	}
	it := c.Iterator(sess)
	defer it.Teardown()

	if err := it.Init(ctx, src); err != nil {
		return nil, err
	}

	notes := make([]models.Note, 0, limit)
	for len(notes) < limit {
		note, err := it.Next(ctx, withImages)
		if errors.Is(err, ErrEndOfFeed) {
			break
		}
		if err != nil {
			return notes, err
		}
		notes = append(notes, *note)
		c.log.InfoWithFields("note extracted", map[string]interface{}{
			"title":    note.Detail.Title,
			"progress": fmt.Sprintf("%d/%d", len(notes), limit),
		})
		if len(notes) < limit {
			if err := c.pacer.Pause(ctx, betweenItemsMin, betweenItemsMax); err != nil {
				return notes, err
			}
		}
	}
	return notes, nil
}

// openFeed navigates to the feed, applies the search filters and waits for
// the feed to render.
func (c *Crawler) openFeed(ctx context.Context, sess Session, page browser.Page, src Source) error {
	url, err := src.URL()
	if err != nil {
		return err
	}
	if err := sess.Navigate(ctx, url); err != nil {
		return err
	}
	if src.isSearch() {
		c.applyFilters(ctx, page, src)
	}
	if err := browser.WaitFor(ctx, c.cfg.ElementTimeout, c.sel.FeedContainer, page.WaitReady); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.Wrap(errs.ErrorTypeFeedUnavailable, err, "feed did not load")
	}
	return nil
}

// applyFilters picks the sort order and period in the search filter panel.
// A filter that cannot be applied is logged and skipped.
func (c *Crawler) applyFilters(ctx context.Context, page browser.Page, src Source) {
	var labels []string
	if src.Sort != "" && src.Sort != models.SortGeneral {
		if label, ok := c.sel.SortLabels[string(src.Sort)]; ok {
			labels = append(labels, label)
		} else {
			c.log.WarnWithFields("unknown sort order, ignoring", map[string]interface{}{"sort": src.Sort})
		}
	}
	if src.Period != "" && src.Period != models.PeriodAll {
		if label, ok := c.sel.PeriodLabels[string(src.Period)]; ok {
			labels = append(labels, label)
		} else {
			c.log.WarnWithFields("unknown period, ignoring", map[string]interface{}{"period": src.Period})
		}
	}

	for _, label := range labels {
		if err := c.applyFilter(ctx, page, label); err != nil {
			c.log.WithError(err).WarnWithFields("failed to apply search filter", map[string]interface{}{"filter": label})
		}
	}
}

func (c *Crawler) applyFilter(ctx context.Context, page browser.Page, label string) error {
	if err := browser.WaitFor(ctx, c.cfg.ElementTimeout, c.sel.FilterTrigger, page.WaitVisible); err != nil {
		return err
	}
	if err := page.Hover(ctx, c.sel.FilterTrigger); err != nil {
		return err
	}
	if err := browser.WaitFor(ctx, c.cfg.ElementTimeout, c.sel.FilterPanel, page.WaitVisible); err != nil {
		return err
	}
	if err := page.ClickText(ctx, c.sel.FilterPanel, label); err != nil {
		return err
	}
	return c.pacer.Pause(ctx, betweenItemsMin, betweenItemsMax)
}

// openItem opens a feed item's detail view and extracts it. The detail
// view is left open.
func (c *Crawler) openItem(ctx context.Context, page browser.Page, item models.FeedItem, withImages bool) (*models.Note, error) {
	start := time.Now()
	if err := c.pacer.Jitter(ctx, page); err != nil {
		return nil, err
	}
	if err := page.ClickNth(ctx, c.sel.FeedItem, item.Index, c.sel.FeedCover); err != nil {
		return nil, fmt.Errorf("failed to open feed item %d: %w", item.Index, err)
	}

	detail, err := c.ext.ExtractDetail(ctx, page)
	logger.LogExtraction(c.log, item.URL, err)
	if err != nil {
		c.metrics.IncNoteFailure("detail")
		return nil, err
	}
	user, err := c.ext.ExtractProfile(ctx, page)
	if err != nil {
		c.metrics.IncNoteFailure("profile")
		return nil, err
	}

	note := &models.Note{User: user, Detail: detail}
	if withImages && c.media != nil && len(detail.ImageURLs) > 0 {
		images, err := c.media.FetchEncoded(ctx, detail.ImageURLs)
		if err != nil {
			c.metrics.IncNoteFailure("media")
			return nil, err
		}
		note.Images = images
	}

	if err := c.pacer.Jitter(ctx, page); err != nil {
		c.log.WithError(err).Debug("cursor jitter after extraction failed")
	}
	c.metrics.ObserveNote(time.Since(start))
	return note, nil
}

// closeDetail dismisses an open detail view, if any.
func (c *Crawler) closeDetail(ctx context.Context, page browser.Page) {
	open, err := page.Exists(ctx, c.sel.DetailClose)
	if err != nil || !open {
		return
	}
	if err := page.Click(ctx, c.sel.DetailClose); err != nil {
		c.log.WithError(err).Debug("failed to close detail view")
		return
	}
	if err := browser.WaitFor(ctx, c.cfg.ElementTimeout, c.sel.DetailContainer, page.WaitGone); err != nil {
		c.log.WithError(err).Debug("detail view did not close")
	}
}
