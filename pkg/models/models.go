package models

import (
	"strings"

	"rednote/pkg/errors"
)

// NoteDetail is the content section of an extracted note.
type NoteDetail struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	ImageURLs []string `json:"imgs,omitempty"`
	VideoURLs []string `json:"videos,omitempty"`
	URL       string   `json:"url"`
	Author    string   `json:"author"`
	Likes     int64    `json:"likes"`
	Collects  int64    `json:"collects"`
	Comments  int64    `json:"comments"`
}

// UserDetail is the author summary read from the hover card.
type UserDetail struct {
	Follows    int64 `json:"follows"`
	Fans       int64 `json:"fans"`
	LikedTotal int64 `json:"liked_total"`
}

// Note is one fully extracted item. Images holds base64 payloads
// in the same order as Detail.ImageURLs when images were requested.
type Note struct {
	User   UserDetail `json:"user"`
	Detail NoteDetail `json:"detail"`
	Images []string   `json:"images,omitempty"`
}

// Comment is a single top-level comment on a note.
type Comment struct {
	Author  string `json:"author"`
	Content string `json:"content"`
	Likes   int64  `json:"likes"`
	Time    string `json:"time"`
}

// TitleRecord remembers a feed item already queued in the current crawl.
type TitleRecord struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FeedItem is one entry of a feed snapshot. Index is its position in the
// snapshot and is only valid until the feed is re-queried.
type FeedItem struct {
	Index int
	Title string
	URL   string
}

// ActionKind enumerates replayable interactions.
type ActionKind string

const (
	ActionLike    ActionKind = "like"
	ActionComment ActionKind = "comment"
)

// ActionRequest targets one note with one interaction.
type ActionRequest struct {
	URL     string     `json:"url" yaml:"url"`
	Title   string     `json:"title,omitempty" yaml:"title,omitempty"`
	Action  ActionKind `json:"action" yaml:"action"`
	Comment string     `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Validate rejects requests that could never succeed.
func (r ActionRequest) Validate() error {
	switch r.Action {
	case ActionLike:
		return nil
	case ActionComment:
		if strings.TrimSpace(r.Comment) == "" {
			return errors.New(errors.ErrorTypeInvalidAction, "comment text is required for comment action")
		}
		return nil
	default:
		return errors.New(errors.ErrorTypeInvalidAction, "unknown action %q", r.Action)
	}
}

// SortOrder selects the search result ordering.
type SortOrder string

const (
	SortGeneral       SortOrder = "general"
	SortLatest        SortOrder = "latest"
	SortMostLiked     SortOrder = "most_liked"
	SortMostCommented SortOrder = "most_commented"
	SortMostCollected SortOrder = "most_collected"
)

// Period restricts search results to a publication window.
type Period string

const (
	PeriodAll      Period = "all"
	PeriodDay      Period = "day"
	PeriodWeek     Period = "week"
	PeriodHalfYear Period = "half_year"
)
