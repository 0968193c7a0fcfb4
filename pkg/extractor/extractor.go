package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rednote/pkg/browser"
	errs "rednote/pkg/errors"
	"rednote/pkg/humanize"
	"rednote/pkg/logger"
	"rednote/pkg/models"
	"rednote/pkg/selectors"
)

// Extractor reads structured data out of a page that is already showing
// the right view. It never navigates.
type Extractor interface {
	ExtractDetail(ctx context.Context, page browser.Page) (models.NoteDetail, error)
	ExtractProfile(ctx context.Context, page browser.Page) (models.UserDetail, error)
	ExtractComments(ctx context.Context, page browser.Page) ([]models.Comment, error)
	ExtractFeed(ctx context.Context, page browser.Page) ([]models.FeedItem, error)
}

// DOMExtractor snapshots the page HTML and parses it with goquery.
type DOMExtractor struct {
	sel     *selectors.Set
	pacer   *humanize.Pacer
	timeout time.Duration
	log     logger.Logger
}

// NewDOMExtractor creates an extractor whose waits are bounded by timeout.
func NewDOMExtractor(sel *selectors.Set, pacer *humanize.Pacer, timeout time.Duration, log logger.Logger) *DOMExtractor {
	if log == nil {
		log = logger.GetLogger()
	}
	if pacer == nil {
		pacer = humanize.NewPacer(nil)
	}
	return &DOMExtractor{sel: sel, pacer: pacer, timeout: timeout, log: log}
}

func (e *DOMExtractor) snapshot(ctx context.Context, page browser.Page) (*goquery.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ExtractDetail waits for the detail and media containers, then parses the
// detail view. The URL is the page's current address.
func (e *DOMExtractor) ExtractDetail(ctx context.Context, page browser.Page) (models.NoteDetail, error) {
	for _, sel := range []string{e.sel.DetailReady, e.sel.DetailMedia} {
		if err := browser.WaitFor(ctx, e.timeout, sel, page.WaitReady); err != nil {
			if ctx.Err() != nil {
				return models.NoteDetail{}, err
			}
			return models.NoteDetail{}, errs.Wrap(errs.ErrorTypeContentNotFound, err, "detail view did not load")
		}
	}

	doc, err := e.snapshot(ctx, page)
	if err != nil {
		return models.NoteDetail{}, err
	}
	detail, err := ParseDetail(doc, e.sel)
	if err != nil {
		return models.NoteDetail{}, err
	}

	url, err := page.URL(ctx)
	if err != nil {
		return models.NoteDetail{}, fmt.Errorf("failed to read page url: %w", err)
	}
	detail.URL = url
	return detail, nil
}

// ExtractProfile hovers the author name to open the profile card, lets it
// settle for a random half to one and a half seconds, and parses it.
func (e *DOMExtractor) ExtractProfile(ctx context.Context, page browser.Page) (models.UserDetail, error) {
	if err := browser.WaitFor(ctx, e.timeout, e.sel.ProfileHover, page.WaitVisible); err != nil {
		if ctx.Err() != nil {
			return models.UserDetail{}, err
		}
		return models.UserDetail{}, errs.Wrap(errs.ErrorTypeContentNotFound, err, "author name not found")
	}
	if err := page.Hover(ctx, e.sel.ProfileHover); err != nil {
		return models.UserDetail{}, fmt.Errorf("failed to hover author: %w", err)
	}
	if err := browser.WaitFor(ctx, e.timeout, e.sel.ProfileCard, page.WaitVisible); err != nil {
		if ctx.Err() != nil {
			return models.UserDetail{}, err
		}
		return models.UserDetail{}, errs.Wrap(errs.ErrorTypeProfileCardInvalid, err, "profile card did not appear")
	}
	if err := e.pacer.Pause(ctx, 500*time.Millisecond, 1500*time.Millisecond); err != nil {
		return models.UserDetail{}, err
	}

	doc, err := e.snapshot(ctx, page)
	if err != nil {
		return models.UserDetail{}, err
	}
	return ParseProfileCard(doc, e.sel)
}

// ExtractComments parses the comment list of an open note.
func (e *DOMExtractor) ExtractComments(ctx context.Context, page browser.Page) ([]models.Comment, error) {
	if err := browser.WaitFor(ctx, e.timeout, e.sel.CommentList, page.WaitReady); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errs.Wrap(errs.ErrorTypeContentNotFound, err, "comments did not load")
	}
	doc, err := e.snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	return ParseComments(doc, e.sel)
}

// ExtractFeed snapshots the feed items currently rendered.
func (e *DOMExtractor) ExtractFeed(ctx context.Context, page browser.Page) ([]models.FeedItem, error) {
	doc, err := e.snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	return ParseFeed(doc, e.sel), nil
}

var _ Extractor = (*DOMExtractor)(nil)
