package crawler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"rednote/pkg/auth"
	"rednote/pkg/browser/browsertest"
	"rednote/pkg/config"
	errs "rednote/pkg/errors"
	"rednote/pkg/extractor"
	"rednote/pkg/humanize"
	"rednote/pkg/logger"
	"rednote/pkg/metrics"
	"rednote/pkg/models"
	"rednote/pkg/platform"
	"rednote/pkg/selectors"
	"rednote/pkg/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noteID(n int) string {
	return fmt.Sprintf("65a1b2c3000000001e%06x", n)
}

func feedSite(unique int, feed ...int) *browsertest.Site {
	var notes []*browsertest.Note
	for i := 0; i < unique; i++ {
		notes = append(notes, &browsertest.Note{
			ID:         noteID(i),
			Title:      fmt.Sprintf("咖啡笔记 %d", i),
			Content:    "内容",
			Author:     "作者",
			Likes:      "1.1万",
			Follows:    "1",
			Fans:       "2",
			LikedTotal: "3",
		})
	}
	ids := make([]string, len(feed))
	for i, n := range feed {
		ids[i] = noteID(n)
	}
	return browsertest.NewSite(notes, ids)
}

type harness struct {
	site     *browsertest.Site
	launcher *browsertest.Launcher
	sleeper  *humanize.RecordingSleeper
	metrics  *metrics.Metrics
	crawler  *Crawler
	cfg      *config.Config
}

func newHarness(t *testing.T, site *browsertest.Site, tweak func(*config.Config)) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Crawl.ElementTimeout = time.Second
	cfg.Retry.BaseDelay = time.Millisecond
	if tweak != nil {
		tweak(cfg)
	}
	sleeper := &humanize.RecordingSleeper{}
	pacer := humanize.NewPacerWithSeed(sleeper, 3)
	sel := selectors.Default()
	m := metrics.New()
	log := logger.NewNopLogger()

	return &harness{
		site:     site,
		launcher: browsertest.NewLauncher(site.Page),
		sleeper:  sleeper,
		metrics:  m,
		cfg:      cfg,
		crawler: New(Options{
			Extractor: extractor.NewDOMExtractor(sel, pacer, cfg.Crawl.ElementTimeout, log),
			Selectors: sel,
			Pacer:     pacer,
			Config:    cfg.Crawl,
			Metrics:   m,
			Logger:    log,
		}),
	}
}

func (h *harness) session() *session.Manager {
	return session.New(session.Options{
		Launcher: h.launcher,
		Store:    auth.NewMockStore(),
		Pacer:    humanize.NewPacerWithSeed(h.sleeper, 5),
		Config:   h.cfg,
		Logger:   logger.NewNopLogger(),
		Metrics:  h.metrics,
	})
}

func drainAll(t *testing.T, it *Iterator) []*models.Note {
	t.Helper()
	var notes []*models.Note
	for i := 0; i < 100; i++ {
		note, err := it.Next(context.Background(), false)
		if err == ErrEndOfFeed {
			return notes
		}
		require.NoError(t, err)
		notes = append(notes, note)
	}
	t.Fatal("iteration did not end")
	return nil
}

func TestIteratorNeverYieldsDuplicates(t *testing.T) {
	// 10 feed entries, 3 of them re-surfaced duplicates.
	site := feedSite(7, 0, 1, 2, 3, 1, 4, 0, 5, 6, 2)
	h := newHarness(t, site, nil)
	it := h.crawler.Iterator(h.session())

	require.NoError(t, it.Init(context.Background(), Source{Keyword: "coffee"}))
	notes := drainAll(t, it)

	require.Len(t, notes, 7)
	seen := map[string]bool{}
	for _, n := range notes {
		key := platform.NormalizeURL(n.Detail.URL)
		assert.False(t, seen[key], "duplicate %s", key)
		seen[key] = true
		assert.NotEmpty(t, n.Detail.Title)
	}
	assert.True(t, h.launcher.AllClosed(), "end of feed releases the browser")

	_, err := it.Next(context.Background(), false)
	assert.ErrorIs(t, err, ErrEndOfFeed)
}

func TestIteratorKeepsNoteWhenCursorMoveFails(t *testing.T) {
	site := feedSite(2, 0, 1)
	h := newHarness(t, site, nil)
	sel := selectors.Default()
	h.launcher.NewPage = func(n int) *browsertest.FakePage {
		p := site.Page(n)
		p.OnMouseMove = func(p *browsertest.FakePage) error {
			if p.Count(sel.DetailContainer) > 0 {
				return errs.New(errs.ErrorTypeNavigation, "target detached")
			}
			return nil
		}
		return p
	}
	it := h.crawler.Iterator(h.session())
	defer it.Teardown()

	require.NoError(t, it.Init(context.Background(), Source{Keyword: "coffee"}))
	note, err := it.Next(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "咖啡笔记 0", note.Detail.Title)
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.NoteFailures.WithLabelValues("detail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.NotesExtracted))
}

func TestIteratorWithoutHalfFeedPrefetch(t *testing.T) {
	site := feedSite(6, 0, 1, 2, 3, 4, 5)
	h := newHarness(t, site, func(c *config.Config) { c.Crawl.HalfFeedPrefetch = false })
	it := h.crawler.Iterator(h.session())

	require.NoError(t, it.Init(context.Background(), Source{ProfileURL: platform.BaseURL + "/user/profile/5f1e2d3c000000000101abcd"}))
	notes := drainAll(t, it)
	assert.Len(t, notes, 6)
}

func TestIteratorStopsOnRepeatingFeed(t *testing.T) {
	site := feedSite(2, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1)
	site.PageSize = 2
	h := newHarness(t, site, func(c *config.Config) {
		c.Crawl.HalfFeedPrefetch = false
		c.Crawl.MaxIdleReloads = 2
	})
	it := h.crawler.Iterator(h.session())

	require.NoError(t, it.Init(context.Background(), Source{Keyword: "coffee"}))
	notes := drainAll(t, it)

	assert.Len(t, notes, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.FeedReloads))
	assert.True(t, h.launcher.AllClosed())
}

func TestIteratorSkipsItemsThatFailToExtract(t *testing.T) {
	site := feedSite(3, 0, 1, 2)
	site.Notes[noteID(1)].NoProfileCard = true
	h := newHarness(t, site, nil)
	it := h.crawler.Iterator(h.session())

	require.NoError(t, it.Init(context.Background(), Source{Keyword: "coffee"}))
	notes := drainAll(t, it)

	require.Len(t, notes, 2)
	assert.Equal(t, "咖啡笔记 0", notes[0].Detail.Title)
	assert.Equal(t, "咖啡笔记 2", notes[1].Detail.Title)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.NoteFailures.WithLabelValues("profile")))
	assert.Len(t, it.Titles(), 0, "teardown forgets the iteration")
}

func TestIteratorLifecycle(t *testing.T) {
	site := feedSite(2, 0, 1)
	h := newHarness(t, site, nil)
	it := h.crawler.Iterator(h.session())
	ctx := context.Background()

	_, err := it.Next(ctx, false)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, it.PostAction(ctx, models.ActionRequest{Action: models.ActionLike}), errs.ErrInvalidAction)
	it.Teardown()

	require.NoError(t, it.Init(ctx, Source{Keyword: "coffee"}))
	note, err := it.Next(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "咖啡笔记 0", note.Detail.Title)
	assert.Equal(t, int64(11000), note.Detail.Likes)
	assert.Equal(t, 1, it.Yielded())
	require.Len(t, it.Titles(), 1)
	assert.Equal(t, platform.NoteURL(noteID(0)), it.Titles()[0].URL)

	require.NoError(t, it.PostAction(ctx, models.ActionRequest{Action: models.ActionLike}))
	assert.Equal(t, 1, site.LikeClicks())
	assert.True(t, site.Notes[noteID(0)].Liked)

	it.Teardown()
	it.Teardown()
	assert.True(t, h.launcher.AllClosed())
	_, err = it.Next(ctx, false)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestInitFailsWithoutLogin(t *testing.T) {
	site := feedSite(1, 0)
	site.LoggedIn = false
	h := newHarness(t, site, nil)

	err := h.crawler.Iterator(h.session()).Init(context.Background(), Source{Keyword: "coffee"})
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)
	assert.True(t, h.launcher.AllClosed())
}

func TestInitFailsWhenFeedMissing(t *testing.T) {
	site := feedSite(1, 0)
	h := newHarness(t, site, nil)

	src := Source{ProfileURL: platform.BaseURL + "/user/profile/5f1e2d3c000000000101abcd"}
	it := h.crawler.Iterator(h.session())
	// the profile renders, but the feed container is swapped out
	h.launcher.NewPage = func(n int) *browsertest.FakePage {
		p := site.Page(n)
		next := p.OnNavigate
		p.OnNavigate = func(p *browsertest.FakePage, url string) {
			next(p, url)
			p.Remove(".feeds-container")
		}
		return p
	}

	err := it.Init(context.Background(), src)
	assert.ErrorIs(t, err, errs.ErrFeedUnavailable)
	assert.True(t, h.launcher.AllClosed())
}

func TestSourceURL(t *testing.T) {
	u, err := Source{Keyword: " 咖啡 "}.URL()
	require.NoError(t, err)
	assert.Equal(t, platform.SearchURL("咖啡"), u)

	_, err = Source{}.URL()
	assert.Error(t, err)
	_, err = Source{Keyword: "a", ProfileURL: "b"}.URL()
	assert.Error(t, err)
	_, err = Source{ProfileURL: "https://example.com/user/profile/1"}.URL()
	assert.Error(t, err)
}

func TestCollectStopsAtLimit(t *testing.T) {
	site := feedSite(5, 0, 1, 2, 3, 4)
	h := newHarness(t, site, nil)

	notes, err := h.crawler.Collect(context.Background(), h.session(), Source{Keyword: "coffee"}, 2, false)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.NotEmpty(t, n.Detail.Title)
		assert.Equal(t, platform.NoteURL(platform.NoteID(n.Detail.URL)), platform.NormalizeURL(n.Detail.URL))
	}
	assert.True(t, h.launcher.AllClosed())
}

func TestCollectAppliesSearchFilters(t *testing.T) {
	site := feedSite(1, 0)
	h := newHarness(t, site, nil)

	src := Source{Keyword: "coffee", Sort: models.SortMostLiked, Period: models.PeriodWeek}
	notes, err := h.crawler.Collect(context.Background(), h.session(), src, 1, false)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	page := h.launcher.Browsers()[0].Pages()[0]
	assert.Equal(t, 1, page.CallCount("clicktext 最多点赞"))
	assert.Equal(t, 1, page.CallCount("clicktext 一周内"))
}

func TestCollectIgnoresFilterFailures(t *testing.T) {
	site := feedSite(2, 0, 1)
	h := newHarness(t, site, nil)
	h.crawler.sel = func() *selectors.Set {
		s := selectors.Default()
		s.SortLabels = map[string]string{"latest": "不存在的标签"}
		return s
	}()

	notes, err := h.crawler.Collect(context.Background(), h.session(), Source{Keyword: "coffee", Sort: models.SortLatest}, 2, false)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}
