package crawler

import (
	"context"

	"rednote/pkg/browser"
	errs "rednote/pkg/errors"
	"rednote/pkg/models"
	"rednote/pkg/platform"
)

// Iterator is one caller-owned crawl over a feed. It is not safe for
// concurrent use; run concurrent crawls on separate iterators.
type Iterator struct {
	c    *Crawler
	sess Session

	page    browser.Page
	items   []models.FeedItem
	index   int
	yielded int
	seen    map[string]struct{}
	titles  []models.TitleRecord

	idleReloads int
	// tail is set once a prefetch reload found nothing new; the rest of
	// the snapshot is drained before the feed can end.
	tail       bool
	detailOpen bool
	done       bool
}

// Iterator returns an idle iterator that will drive sess.
func (c *Crawler) Iterator(sess Session) *Iterator {
	return &Iterator{c: c, sess: sess, seen: map[string]struct{}{}}
}

// Init resets the iteration, opens a fresh session, loads the feed for src
// and captures the first snapshot of items. On failure the session is
// released.
func (it *Iterator) Init(ctx context.Context, src Source) (err error) {
	it.Teardown()
	defer func() {
		if err != nil {
			it.Teardown()
		}
	}()

	if _, err := src.URL(); err != nil {
		return err
	}

	page, err := it.sess.EnsureSession(ctx)
	if err != nil {
		return err
	}
	if err := it.c.openFeed(ctx, it.sess, page, src); err != nil {
		return err
	}
	items, err := it.c.ext.ExtractFeed(ctx, page)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFeedUnavailable, err, "failed to read feed")
	}

	it.page = page
	it.items = items
	it.c.log.InfoWithFields("feed loaded", map[string]interface{}{
		"keyword": src.Keyword,
		"profile": src.ProfileURL,
		"items":   len(items),
	})
	return nil
}

// Next returns the next unseen note of the feed. It returns ErrEndOfFeed
// once scrolling stops surfacing new items, after which the session is
// already released. A note that fails to extract is skipped.
func (it *Iterator) Next(ctx context.Context, withImages bool) (*models.Note, error) {
	if it.done {
		return nil, ErrEndOfFeed
	}
	if it.page == nil {
		return nil, ErrNotStarted
	}
	if it.detailOpen {
		it.c.closeDetail(ctx, it.page)
		it.detailOpen = false
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		exhausted := it.index >= len(it.items)
		prefetch := !exhausted && !it.tail && it.c.cfg.HalfFeedPrefetch && it.index*2 >= len(it.items)
		if exhausted || prefetch {
			grew, err := it.reload(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				it.c.log.WithError(err).Warn("failed to load more items, ending crawl")
				return nil, it.finish()
			}
			switch {
			case grew:
				it.tail = false
			case prefetch:
				it.tail = true
			default:
				it.c.log.InfoWithFields("no more items to load", map[string]interface{}{"yielded": it.yielded})
				return nil, it.finish()
			}
			if grew && !it.hasUnseen() {
				it.idleReloads++
				if it.idleReloads >= it.c.cfg.MaxIdleReloads {
					it.c.log.InfoWithFields("feed keeps repeating itself, ending crawl", map[string]interface{}{
						"reloads": it.idleReloads,
					})
					return nil, it.finish()
				}
			} else if grew {
				it.idleReloads = 0
			}
			continue
		}

		note, ok, err := it.drain(ctx, withImages)
		if err != nil {
			return nil, err
		}
		if ok {
			return note, nil
		}
	}
}

// drain walks the rest of the snapshot until one unseen item extracts. It
// reports false once the snapshot is used up.
func (it *Iterator) drain(ctx context.Context, withImages bool) (*models.Note, bool, error) {
	for it.index < len(it.items) {
		item := it.items[it.index]
		it.index++

		key := platform.NormalizeURL(item.URL)
		if key == "" {
			continue
		}
		if _, dup := it.seen[key]; dup {
			continue
		}
		it.seen[key] = struct{}{}
		it.titles = append(it.titles, models.TitleRecord{Title: item.Title, URL: key})

		note, err := it.c.openItem(ctx, it.page, item, withImages)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			it.c.log.WithError(err).WarnWithFields("skipping item", map[string]interface{}{
				"url":   key,
				"index": item.Index,
			})
			it.c.closeDetail(ctx, it.page)
			continue
		}

		it.detailOpen = true
		it.yielded++
		return note, true, nil
	}
	return nil, false, nil
}

func (it *Iterator) hasUnseen() bool {
	for _, item := range it.items {
		key := platform.NormalizeURL(item.URL)
		if key == "" {
			continue
		}
		if _, dup := it.seen[key]; !dup {
			return true
		}
	}
	return false
}

// reload nudges the cursor, scrolls in small steps until the page grows
// and re-reads the feed. It reports whether the page grew.
func (it *Iterator) reload(ctx context.Context) (bool, error) {
	c := it.c
	if err := c.pacer.Jitter(ctx, it.page); err != nil {
		return false, err
	}
	before, err := it.page.ScrollHeight(ctx)
	if err != nil {
		return false, err
	}

	height := before
	for step := 0; step < c.cfg.ScrollSteps && height <= before; step++ {
		if err := it.page.MouseWheel(ctx, 0, c.cfg.ScrollDelta); err != nil {
			return false, err
		}
		if err := c.pacer.Sleep(ctx, c.cfg.ScrollPause); err != nil {
			return false, err
		}
		if err := browser.WaitFor(ctx, c.cfg.ElementTimeout, c.sel.FeedItem, it.page.WaitReady); err != nil {
			return false, err
		}
		if height, err = it.page.ScrollHeight(ctx); err != nil {
			return false, err
		}
	}
	c.metrics.IncFeedReload()
	c.log.DebugWithFields("scrolled feed", map[string]interface{}{
		"height_before": before,
		"height_after":  height,
	})
	if height <= before {
		return false, nil
	}

	items, err := c.ext.ExtractFeed(ctx, it.page)
	if err != nil {
		return false, err
	}
	it.items = items
	it.index = 0
	c.log.DebugWithFields("loaded more items", map[string]interface{}{"items": len(items)})
	return true, nil
}

// PostAction replays req on the note most recently returned by Next.
func (it *Iterator) PostAction(ctx context.Context, req models.ActionRequest) error {
	if it.page == nil || !it.detailOpen {
		return errs.New(errs.ErrorTypeInvalidAction, "no note is open")
	}
	return it.c.replay.PerformAction(ctx, it.page, req)
}

// Yielded counts notes returned so far.
func (it *Iterator) Yielded() int {
	return it.yielded
}

// Titles lists the items opened so far, in order.
func (it *Iterator) Titles() []models.TitleRecord {
	return append([]models.TitleRecord(nil), it.titles...)
}

// Seed marks URLs as already seen so a resumed crawl skips them.
func (it *Iterator) Seed(urls []string) {
	for _, u := range urls {
		if key := platform.NormalizeURL(u); key != "" {
			it.seen[key] = struct{}{}
		}
	}
}

func (it *Iterator) finish() error {
	it.Teardown()
	it.done = true
	return ErrEndOfFeed
}

// Teardown releases the session and forgets the iteration. It is safe to
// call at any time, including before Init.
func (it *Iterator) Teardown() {
	if it.sess != nil {
		if err := it.sess.Cleanup(); err != nil {
			it.c.log.WithError(err).Warn("failed to release session")
		}
	}
	it.page = nil
	it.items = nil
	it.index = 0
	it.yielded = 0
	it.seen = map[string]struct{}{}
	it.titles = nil
	it.idleReloads = 0
	it.tail = false
	it.detailOpen = false
	it.done = false
}
