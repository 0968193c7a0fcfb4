package extractor

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "rednote/pkg/errors"
	"rednote/pkg/models"
	"rednote/pkg/platform"
	"rednote/pkg/selectors"
)

// tenThousand is the unit the site uses for large counts ("1.2万").
const tenThousand = "万"

var leadingNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseCount converts a rendered counter to a number. "1.2万" becomes 12000,
// "345" stays 345, and anything non-numeric (the site renders "赞" for
// zero likes) becomes 0.
func ParseCount(raw string) int64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "+")
	s = strings.ReplaceAll(s, ",", "")

	if strings.Contains(s, tenThousand) {
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, tenThousand, "")), 64)
		if err != nil {
			return 0
		}
		return int64(math.Round(f * 10000))
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// parseEmbeddedCount finds the first number in a label like "12.3万 粉丝".
func parseEmbeddedCount(label string) int64 {
	m := leadingNumber.FindString(label)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	if strings.Contains(label, tenThousand) {
		f *= 10000
	}
	return int64(math.Round(f))
}

// DedupStrings keeps the first occurrence of each non-empty string.
func DedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.First().Text())
}

func attrs(s *goquery.Selection, name string) []string {
	var out []string
	s.Each(func(_ int, el *goquery.Selection) {
		if v, ok := el.Attr(name); ok {
			out = append(out, strings.TrimSpace(v))
		}
	})
	return out
}

// ParseDetail reads an open detail view. URL is left for the caller.
func ParseDetail(doc *goquery.Document, sel *selectors.Set) (models.NoteDetail, error) {
	article := doc.Find(sel.DetailReady).First()
	if article.Length() == 0 {
		return models.NoteDetail{}, errs.New(errs.ErrorTypeContentNotFound, "detail container %q not found", sel.DetailReady)
	}

	title := text(article.Find(sel.Title))
	if title == "" {
		title = text(article.Find(sel.TitleFallback))
	}

	tags := []string{}
	article.Find(sel.Tags).Each(func(_ int, s *goquery.Selection) {
		tag := strings.TrimSpace(strings.ReplaceAll(s.Text(), "#", ""))
		if tag != "" {
			tags = append(tags, tag)
		}
	})

	return models.NoteDetail{
		Title:     title,
		Content:   text(article.Find(sel.Content)),
		Tags:      tags,
		ImageURLs: DedupStrings(attrs(doc.Find(sel.Images), "src")),
		VideoURLs: DedupStrings(attrs(doc.Find(sel.Videos), "src")),
		Author:    text(article.Find(sel.Author)),
		Likes:     ParseCount(text(doc.Find(sel.LikeCount))),
		Collects:  ParseCount(text(doc.Find(sel.CollectCount))),
		Comments:  ParseCount(text(doc.Find(sel.CommentCount))),
	}, nil
}

// ParseProfileCard reads the author hover card. The first three counters
// are follows, fans and total likes received.
func ParseProfileCard(doc *goquery.Document, sel *selectors.Set) (models.UserDetail, error) {
	card := doc.Find(sel.ProfileCard).First()
	if card.Length() == 0 {
		return models.UserDetail{}, errs.New(errs.ErrorTypeProfileCardInvalid, "profile card %q not found", sel.ProfileCard)
	}
	counters := card.Find(sel.ProfileCounter)
	if counters.Length() < 3 {
		return models.UserDetail{}, errs.New(errs.ErrorTypeProfileCardInvalid, "profile card has %d counters, want 3", counters.Length())
	}

	return models.UserDetail{
		Follows:    parseEmbeddedCount(counters.Eq(0).Text()),
		Fans:       parseEmbeddedCount(counters.Eq(1).Text()),
		LikedTotal: parseEmbeddedCount(counters.Eq(2).Text()),
	}, nil
}

// ParseComments reads the visible top-level comments.
func ParseComments(doc *goquery.Document, sel *selectors.Set) ([]models.Comment, error) {
	list := doc.Find(sel.CommentList).First()
	if list.Length() == 0 {
		return nil, errs.New(errs.ErrorTypeContentNotFound, "comment list %q not found", sel.CommentList)
	}

	comments := []models.Comment{}
	list.Find(sel.CommentItem).Each(func(_ int, item *goquery.Selection) {
		comments = append(comments, models.Comment{
			Author:  text(item.Find(sel.CommentAuthor)),
			Content: text(item.Find(sel.CommentContent)),
			Likes:   ParseCount(text(item.Find(sel.CommentLikes))),
			Time:    text(item.Find(sel.CommentTime)),
		})
	})
	return comments, nil
}

// ParseFeed snapshots the feed items in document order. Items without a
// link are kept with an empty URL so indices line up with the page.
func ParseFeed(doc *goquery.Document, sel *selectors.Set) []models.FeedItem {
	items := []models.FeedItem{}
	doc.Find(sel.FeedItem).Each(func(i int, s *goquery.Selection) {
		href, _ := s.Find(sel.FeedCover).First().Attr("href")
		if href == "" {
			href, _ = s.Find("a[href]").First().Attr("href")
		}
		items = append(items, models.FeedItem{
			Index: i,
			Title: text(s.Find(sel.FeedTitle)),
			URL:   platform.AbsoluteURL(href),
		})
	})
	return items
}
