package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rednote/pkg/browser"
	"rednote/pkg/browser/browsertest"
	errs "rednote/pkg/errors"
	"rednote/pkg/humanize"
	"rednote/pkg/logger"
	"rednote/pkg/metrics"
	"rednote/pkg/models"
	"rednote/pkg/platform"
	"rednote/pkg/selectors"
)

const (
	first  = "64f0c0de000000001e00a111"
	second = "64f0c0de000000001e00a222"
	third  = "64f0c0de000000001e00a333"
)

type pageNav struct{ page browser.Page }

func (n pageNav) Navigate(ctx context.Context, url string) error {
	return n.page.Navigate(ctx, url)
}

func newSite() *browsertest.Site {
	var notes []*browsertest.Note
	for _, id := range []string{first, second, third} {
		notes = append(notes, &browsertest.Note{ID: id, Title: "t" + id[len(id)-3:], Likes: "1"})
	}
	return browsertest.NewSite(notes, nil)
}

func newReplayer(rec *humanize.RecordingSleeper, m *metrics.Metrics) *Replayer {
	return NewReplayer(selectors.Default(), humanize.NewPacerWithSeed(rec, 7), time.Second, m, logger.NewNopLogger())
}

func TestLikeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	site := newSite()
	page := site.Page(0)
	require.NoError(t, page.Navigate(ctx, platform.NoteURL(first)))

	r := newReplayer(&humanize.RecordingSleeper{}, nil)
	req := models.ActionRequest{URL: platform.NoteURL(first), Action: models.ActionLike}

	require.NoError(t, r.PerformAction(ctx, page, req))
	require.NoError(t, r.PerformAction(ctx, page, req))
	assert.Equal(t, 1, site.LikeClicks(), "a liked note is never clicked again")
	assert.True(t, site.Notes[first].Liked)
}

func TestLikeAlreadyLikedNote(t *testing.T) {
	ctx := context.Background()
	site := newSite()
	site.Notes[first].Liked = true
	page := site.Page(0)
	require.NoError(t, page.Navigate(ctx, platform.NoteURL(first)))

	rec := &humanize.RecordingSleeper{}
	require.NoError(t, newReplayer(rec, nil).PerformAction(ctx, page, models.ActionRequest{Action: models.ActionLike}))
	assert.Equal(t, 0, site.LikeClicks())

	require.Len(t, rec.Sleeps(), 1, "only the pre-action delay")
	assert.GreaterOrEqual(t, rec.Sleeps()[0], preActionMin)
	assert.Less(t, rec.Sleeps()[0], preActionMax)
}

func TestCommentTypesCharacterByCharacter(t *testing.T) {
	ctx := context.Background()
	site := newSite()
	page := site.Page(0)
	require.NoError(t, page.Navigate(ctx, platform.NoteURL(second)))

	rec := &humanize.RecordingSleeper{}
	err := newReplayer(rec, nil).PerformAction(ctx, page, models.ActionRequest{
		Action:  models.ActionComment,
		Comment: "好喝!",
	})
	require.NoError(t, err)

	sel := selectors.Default()
	assert.Equal(t, []string{"好", "好喝", "好喝!"}, page.Fills(sel.CommentInput))
	assert.Equal(t, []string{"好喝!"}, site.Posted(second))

	sleeps := rec.Sleeps()
	// pre-action, focus, three keystrokes, submit, settle
	require.Len(t, sleeps, 7)
	assert.Equal(t, focusDelay, sleeps[1])
	for _, d := range sleeps[2:5] {
		assert.Greater(t, d, time.Second/3)
		assert.LessOrEqual(t, d, time.Second/2)
	}
	assert.GreaterOrEqual(t, sleeps[5], submitMin)
	assert.Less(t, sleeps[5], submitMax)
	assert.Equal(t, settleDelay, sleeps[6])
}

func TestInvalidActionsFailBeforeTouchingThePage(t *testing.T) {
	ctx := context.Background()
	page := newSite().Page(0)
	r := newReplayer(&humanize.RecordingSleeper{}, nil)

	err := r.PerformAction(ctx, page, models.ActionRequest{Action: models.ActionComment, Comment: "  "})
	assert.ErrorIs(t, err, errs.ErrInvalidAction)

	err = r.PerformAction(ctx, page, models.ActionRequest{Action: "share"})
	assert.ErrorIs(t, err, errs.ErrInvalidAction)

	assert.Empty(t, page.Calls())
}

func TestPostActionListReportsPerItem(t *testing.T) {
	ctx := context.Background()
	site := newSite()
	page := site.Page(0)
	page.NavigateErr = map[string]error{
		platform.NoteURL(second): errors.New("net::ERR_CONNECTION_RESET"),
	}

	m := metrics.New()
	r := newReplayer(&humanize.RecordingSleeper{}, m)
	results := r.PostActionList(ctx, pageNav{page}, page, []models.ActionRequest{
		{URL: platform.NoteURL(first), Action: models.ActionLike},
		{URL: platform.NoteURL(second), Action: models.ActionLike},
		{URL: platform.NoteURL(third), Action: models.ActionComment, Comment: "收藏了"},
	})

	assert.Equal(t, []bool{true, false, true}, results)
	assert.True(t, site.Notes[first].Liked)
	assert.False(t, site.Notes[second].Liked)
	assert.Equal(t, []string{"收藏了"}, site.Posted(third))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("like", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("comment", "success")))
}

func TestPostActionListInvalidRequest(t *testing.T) {
	ctx := context.Background()
	page := newSite().Page(0)
	r := newReplayer(&humanize.RecordingSleeper{}, nil)

	results := r.PostActionList(ctx, pageNav{page}, page, []models.ActionRequest{
		{URL: platform.NoteURL(first), Action: models.ActionComment},
		{URL: platform.NoteURL(first), Action: models.ActionLike},
	})
	assert.Equal(t, []bool{false, true}, results)
	assert.Equal(t, 1, page.CallCount("navigate"), "an invalid request is not navigated to")
}
