package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "rednote/pkg/errors"
	"rednote/pkg/selectors"
)

const detailFixture = `<html><body>
<div id="noteContainer">
  <div class="note-container">
    <div class="media-container">
      <img src="https://sns-img.example/a.jpg"/>
      <img src="https://sns-img.example/b.jpg"/>
      <img src="https://sns-img.example/a.jpg"/>
      <video src="https://sns-video.example/v.mp4"></video>
    </div>
    <div class="author-container"><div class="info"><a class="name"><span class="username"> 咖啡小王 </span></a></div></div>
    <div class="note-scroller">
      <div class="note-content">
        <div id="detail-title" class="title">手冲咖啡入门</div>
        <div class="desc"><span class="note-text"><span>从磨豆开始</span><a class="tag">#咖啡[话题]#</a><a class="tag">#手冲</a></span></div>
      </div>
    </div>
    <div class="input-box">
      <div class="engage-bar-style">
        <span class="like-wrapper like-active"><span class="count">1.2万</span></span>
        <span class="collect-wrapper"><span class="count">856</span></span>
        <span class="chat-wrapper"><span class="count">评论</span></span>
      </div>
    </div>
  </div>
</div>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"1.2万", 12000},
		{" 3万 ", 30000},
		{"10万+", 100000},
		{"345", 345},
		{"1,024", 1024},
		{"12.7", 12},
		{"赞", 0},
		{"", 0},
		{"万", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCount(tt.raw))
		})
	}
}

func TestDedupStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, DedupStrings([]string{"a", "b", "a", "", "c", "b"}))
	assert.Empty(t, DedupStrings(nil))
}

func TestParseDetail(t *testing.T) {
	detail, err := ParseDetail(mustDoc(t, detailFixture), selectors.Default())
	require.NoError(t, err)

	assert.Equal(t, "手冲咖啡入门", detail.Title)
	assert.Equal(t, "从磨豆开始", detail.Content)
	assert.Equal(t, []string{"咖啡[话题]", "手冲"}, detail.Tags)
	assert.Equal(t, "咖啡小王", detail.Author)
	assert.Equal(t, []string{"https://sns-img.example/a.jpg", "https://sns-img.example/b.jpg"}, detail.ImageURLs)
	assert.Equal(t, []string{"https://sns-video.example/v.mp4"}, detail.VideoURLs)
	assert.Equal(t, int64(12000), detail.Likes)
	assert.Equal(t, int64(856), detail.Collects)
	assert.Equal(t, int64(0), detail.Comments)
	assert.Empty(t, detail.URL)
}

func TestParseDetailTitleFallback(t *testing.T) {
	html := `<div class="note-container"><div class="title">备用标题</div><div class="media-container"></div></div>`
	detail, err := ParseDetail(mustDoc(t, html), selectors.Default())
	require.NoError(t, err)
	assert.Equal(t, "备用标题", detail.Title)
	assert.Equal(t, []string{}, detail.Tags)
}

func TestParseDetailMissingContainer(t *testing.T) {
	_, err := ParseDetail(mustDoc(t, `<div class="feeds-container"></div>`), selectors.Default())
	assert.ErrorIs(t, err, errs.ErrContentNotFound)
}

func TestParseProfileCard(t *testing.T) {
	html := `<div class="user-content"><div class="interaction-info">
		<a class="interaction"><span class="count">12</span><span>关注</span></a>
		<a class="interaction"><span class="count">3.4万</span><span>粉丝</span></a>
		<a class="interaction"><span class="count">10万+</span><span>获赞与收藏</span></a>
	</div></div>`

	user, err := ParseProfileCard(mustDoc(t, html), selectors.Default())
	require.NoError(t, err)
	assert.Equal(t, int64(12), user.Follows)
	assert.Equal(t, int64(34000), user.Fans)
	assert.Equal(t, int64(100000), user.LikedTotal)
}

func TestParseProfileCardInvalid(t *testing.T) {
	sel := selectors.Default()

	_, err := ParseProfileCard(mustDoc(t, `<div></div>`), sel)
	assert.ErrorIs(t, err, errs.ErrProfileCardInvalid)

	twoCounters := `<div class="user-content"><div class="interaction-info"><a class="interaction">1</a><a class="interaction">2</a></div></div>`
	_, err = ParseProfileCard(mustDoc(t, twoCounters), sel)
	assert.ErrorIs(t, err, errs.ErrProfileCardInvalid)
}

func TestParseComments(t *testing.T) {
	html := `<div class="comments-container"><div class="list-container">
		<div class="comment-item"><div class="author"><a class="name">小李</a></div><div class="content"><span class="note-text">好喝吗</span></div><div class="info"><div class="date"><span>2天前</span></div><div class="interactions"><div class="like"><span class="count">1.1万</span></div></div></div></div>
		<div class="comment-item"><div class="author"><a class="name">小张</a></div><div class="content"><span class="note-text">收藏了</span></div><div class="info"><div class="date"><span>03-12</span></div><div class="interactions"><div class="like"><span class="count">赞</span></div></div></div></div>
	</div></div>`

	comments, err := ParseComments(mustDoc(t, html), selectors.Default())
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "小李", comments[0].Author)
	assert.Equal(t, "好喝吗", comments[0].Content)
	assert.Equal(t, int64(11000), comments[0].Likes)
	assert.Equal(t, "2天前", comments[0].Time)
	assert.Equal(t, int64(0), comments[1].Likes)

	_, err = ParseComments(mustDoc(t, `<div></div>`), selectors.Default())
	assert.ErrorIs(t, err, errs.ErrContentNotFound)
}

func TestParseFeed(t *testing.T) {
	html := `<div class="feeds-container">
		<section class="note-item"><a class="cover mask ld" href="/explore/aaa?xsec_token=1"></a><div class="footer"><a class="title"><span>第一篇</span></a></div></section>
		<section class="note-item"><a href="/explore/bbb"></a></section>
		<section class="note-item"></section>
	</div>`

	items := ParseFeed(mustDoc(t, html), selectors.Default())
	require.Len(t, items, 3)
	assert.Equal(t, "第一篇", items[0].Title)
	assert.Equal(t, "https://www.xiaohongshu.com/explore/aaa?xsec_token=1", items[0].URL)
	assert.Equal(t, "https://www.xiaohongshu.com/explore/bbb", items[1].URL)
	assert.Equal(t, 2, items[2].Index)
	assert.Empty(t, items[2].URL)
}
