package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"rednote/pkg/auth"
	"rednote/pkg/browser/browsertest"
	"rednote/pkg/config"
	errs "rednote/pkg/errors"
	"rednote/pkg/humanize"
	"rednote/pkg/logger"
	"rednote/pkg/metrics"
	"rednote/pkg/models"
	"rednote/pkg/platform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func id(n int) string {
	return fmt.Sprintf("66b0c0ffee00000000%06x", n)
}

type stubMedia struct {
	mu   sync.Mutex
	urls [][]string
}

func (s *stubMedia) FetchEncoded(ctx context.Context, urls []string) ([]string, error) {
	s.mu.Lock()
	s.urls = append(s.urls, urls)
	s.mu.Unlock()
	out := make([]string, len(urls))
	for i := range urls {
		out[i] = fmt.Sprintf("img%d", i)
	}
	return out, nil
}

type testEngine struct {
	*Engine
	site     *browsertest.Site
	launcher *browsertest.Launcher
	media    *stubMedia
}

func newTestEngine(t *testing.T, notes int) *testEngine {
	t.Helper()
	var list []*browsertest.Note
	var feed []string
	for i := 0; i < notes; i++ {
		list = append(list, &browsertest.Note{
			ID:      id(i),
			Title:   fmt.Sprintf("coffee %d", i),
			Content: "pour over",
			Images:  []string{fmt.Sprintf("https://sns-img.example/%d.jpg", i)},
			Likes:   "12",
			CommentList: []browsertest.Comment{
				{Author: "a", Content: "nice", Likes: "2", Time: "1天前"},
				{Author: "b", Content: "where?", Likes: "赞", Time: "2天前"},
			},
		})
		feed = append(feed, id(i))
	}
	site := browsertest.NewSite(list, feed)
	launcher := browsertest.NewLauncher(site.Page)

	cfg := config.DefaultConfig()
	cfg.Crawl.ElementTimeout = time.Second
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond

	media := &stubMedia{}
	e := New(Options{
		Launcher: launcher,
		Store:    auth.NewMockStore(),
		Pacer:    humanize.NewPacerWithSeed(&humanize.RecordingSleeper{}, 11),
		Config:   cfg,
		Metrics:  metrics.New(),
		Logger:   logger.NewNopLogger(),
		Media:    media,
	})
	return &testEngine{Engine: e, site: site, launcher: launcher, media: media}
}

func TestSearchAndExtract(t *testing.T) {
	e := newTestEngine(t, 5)

	notes, err := e.SearchAndExtract(context.Background(), "coffee", models.SortGeneral, models.PeriodAll, 2, false)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	for i, n := range notes {
		assert.Equal(t, fmt.Sprintf("coffee %d", i), n.Detail.Title)
		assert.Equal(t, id(i), platform.NoteID(n.Detail.URL))
		assert.Empty(t, n.Images)
	}
	assert.Empty(t, e.media.urls)
	assert.True(t, e.launcher.AllClosed())
}

func TestSearchAndExtractWithImages(t *testing.T) {
	e := newTestEngine(t, 1)

	notes, err := e.SearchAndExtract(context.Background(), "coffee", "", "", 5, true)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, []string{"img0"}, notes[0].Images)
	assert.Equal(t, [][]string{{"https://sns-img.example/0.jpg"}}, e.media.urls)
}

func TestListUserItemsAndExtract(t *testing.T) {
	e := newTestEngine(t, 3)

	notes, err := e.ListUserItemsAndExtract(context.Background(), platform.BaseURL+"/user/profile/5e0f1a2b000000000100c0de", 10, false)
	require.NoError(t, err)
	assert.Len(t, notes, 3)
	assert.True(t, e.launcher.AllClosed())
}

func TestSearchRequiresLogin(t *testing.T) {
	e := newTestEngine(t, 1)
	e.site.LoggedIn = false

	_, err := e.SearchAndExtract(context.Background(), "coffee", "", "", 1, false)
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)
	assert.True(t, e.launcher.AllClosed())
}

func TestGetItemFromShareText(t *testing.T) {
	e := newTestEngine(t, 2)
	url := platform.NoteURL(id(1)) + "?xsec_token=abc"

	detail, err := e.GetItem(context.Background(), "看看这篇 "+url+" 复制本条信息打开")
	require.NoError(t, err)
	assert.Equal(t, "coffee 1", detail.Title)
	assert.Equal(t, url, detail.URL)
	assert.True(t, e.launcher.AllClosed())
}

func TestGetItemMissingNote(t *testing.T) {
	e := newTestEngine(t, 1)

	_, err := e.GetItem(context.Background(), platform.NoteURL(id(9)))
	assert.ErrorIs(t, err, errs.ErrContentNotFound)
	assert.True(t, e.launcher.AllClosed())
}

func TestGetComments(t *testing.T) {
	e := newTestEngine(t, 1)

	comments, err := e.GetComments(context.Background(), platform.NoteURL(id(0)))
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, models.Comment{Author: "a", Content: "nice", Likes: 2, Time: "1天前"}, comments[0])
	assert.Equal(t, int64(0), comments[1].Likes)
}

func TestPostActionsPartialFailure(t *testing.T) {
	e := newTestEngine(t, 3)
	e.launcher.NewPage = func(n int) *browsertest.FakePage {
		p := e.site.Page(n)
		p.NavigateErr = map[string]error{platform.NoteURL(id(1)): errors.New("net::ERR_TIMED_OUT")}
		return p
	}

	results, err := e.PostActions(context.Background(), []models.ActionRequest{
		{URL: platform.NoteURL(id(0)), Action: models.ActionLike},
		{URL: platform.NoteURL(id(1)), Action: models.ActionLike},
		{URL: platform.NoteURL(id(2)), Action: models.ActionComment, Comment: "好看"},
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, results)
	assert.Equal(t, []string{"好看"}, e.site.Posted(id(2)))
	assert.True(t, e.launcher.AllClosed())
}

func TestPostActionsEmptyBatch(t *testing.T) {
	e := newTestEngine(t, 1)
	e.site.LoggedIn = false

	results, err := e.PostActions(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []bool{}, results)
	assert.Empty(t, e.launcher.Launches(), "no browser for an empty batch")
}

func TestConcurrentCallsUseSeparateSessions(t *testing.T) {
	e := newTestEngine(t, 4)

	var wg sync.WaitGroup
	failures := make([]error, 3)
	for i := range failures {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, failures[i] = e.SearchAndExtract(context.Background(), "coffee", "", "", 2, false)
		}(i)
	}
	wg.Wait()

	for _, err := range failures {
		assert.NoError(t, err)
	}
	assert.Len(t, e.launcher.Launches(), 3)
	assert.True(t, e.launcher.AllClosed())
}
