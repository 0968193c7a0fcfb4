// Package selectors holds the CSS selectors and labels the engine relies on.
//
// The site ships front-end changes often, so every selector can be
// overridden from a YAML file without rebuilding.
package selectors

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Set is one complete selector catalogue.
type Set struct {
	Version string `yaml:"version"`

	// LoginMarker is the sidebar entry that only renders for a logged-in
	// user; its text equals LoginMarkerText.
	LoginMarker     string `yaml:"login_marker"`
	LoginMarkerText string `yaml:"login_marker_text"`
	LoginContainer  string `yaml:"login_container"`
	QRCode          string `yaml:"qr_code"`
	CaptchaPath     string `yaml:"captcha_path"`

	FeedContainer string `yaml:"feed_container"`
	FeedItem      string `yaml:"feed_item"`
	FeedCover     string `yaml:"feed_cover"`
	FeedTitle     string `yaml:"feed_title"`

	DetailContainer string `yaml:"detail_container"`
	DetailClose     string `yaml:"detail_close"`
	DetailReady     string `yaml:"detail_ready"`
	DetailMedia     string `yaml:"detail_media"`

	Title         string `yaml:"title"`
	TitleFallback string `yaml:"title_fallback"`
	Content       string `yaml:"content"`
	Tags          string `yaml:"tags"`
	Author        string `yaml:"author"`
	LikeCount     string `yaml:"like_count"`
	CollectCount  string `yaml:"collect_count"`
	CommentCount  string `yaml:"comment_count"`
	Images        string `yaml:"images"`
	Videos        string `yaml:"videos"`

	ProfileHover   string `yaml:"profile_hover"`
	ProfileCard    string `yaml:"profile_card"`
	ProfileCounter string `yaml:"profile_counter"`

	CommentList    string `yaml:"comment_list"`
	CommentItem    string `yaml:"comment_item"`
	CommentAuthor  string `yaml:"comment_author"`
	CommentContent string `yaml:"comment_content"`
	CommentLikes   string `yaml:"comment_likes"`
	CommentTime    string `yaml:"comment_time"`

	InputBox      string `yaml:"input_box"`
	InputContent  string `yaml:"input_content"`
	LikeState     string `yaml:"like_state"`
	LikedHref     string `yaml:"liked_href"`
	LikeButton    string `yaml:"like_button"`
	CommentOpen   string `yaml:"comment_open"`
	CommentEditor string `yaml:"comment_editor"`
	CommentInput  string `yaml:"comment_input"`
	CommentSubmit string `yaml:"comment_submit"`

	FilterTrigger string            `yaml:"filter_trigger"`
	FilterPanel   string            `yaml:"filter_panel"`
	SortLabels    map[string]string `yaml:"sort_labels"`
	PeriodLabels  map[string]string `yaml:"period_labels"`
}

// Default returns the built-in catalogue.
func Default() *Set {
	return &Set{
		Version: "2024",

		LoginMarker:     ".user.side-bar-component .channel",
		LoginMarkerText: "我",
		LoginContainer:  ".login-container",
		QRCode:          ".qrcode-img",
		CaptchaPath:     "/web-login/captcha",

		FeedContainer: ".feeds-container",
		FeedItem:      ".feeds-container .note-item",
		FeedCover:     "a.cover.mask.ld",
		FeedTitle:     ".footer .title span",

		DetailContainer: "#noteContainer",
		DetailClose:     ".close-circle",
		DetailReady:     ".note-container",
		DetailMedia:     ".media-container",

		Title:         "#detail-title",
		TitleFallback: ".title",
		Content:       ".note-scroller .note-content .note-text span",
		Tags:          ".note-content .note-text a",
		Author:        ".author-container .info .username",
		LikeCount:     ".engage-bar-style .like-wrapper .count",
		CollectCount:  ".engage-bar-style .collect-wrapper .count",
		CommentCount:  ".engage-bar-style .chat-wrapper .count",
		Images:        ".media-container img",
		Videos:        ".media-container video",

		ProfileHover:   ".author-container .username",
		ProfileCard:    ".user-content .interaction-info",
		ProfileCounter: "a.interaction",

		CommentList:    ".comments-container .list-container",
		CommentItem:    ".comment-item",
		CommentAuthor:  ".author .name",
		CommentContent: ".content .note-text",
		CommentLikes:   ".interactions .like .count",
		CommentTime:    ".info .date span",

		InputBox:      ".input-box",
		InputContent:  ".input-box .content-input",
		LikeState:     ".input-box .like-wrapper.like-active use",
		LikedHref:     "#liked",
		LikeButton:    ".input-box .like-wrapper.like-active .like-lottie",
		CommentOpen:   ".input-box .content-edit .inner span",
		CommentEditor: ".input-box .content-edit .content-input",
		CommentInput:  ".input-box .content-input",
		CommentSubmit: ".bottom .btn.submit",

		FilterTrigger: ".search-layout .filter",
		FilterPanel:   ".filter-panel",
		SortLabels: map[string]string{
			"general":        "综合",
			"latest":         "最新",
			"most_liked":     "最多点赞",
			"most_commented": "最多评论",
			"most_collected": "最多收藏",
		},
		PeriodLabels: map[string]string{
			"all":       "不限",
			"day":       "一天内",
			"week":      "一周内",
			"half_year": "半年内",
		},
	}
}

// Load reads a YAML override file and merges it over the defaults. Keys
// absent from the file keep their default values. An empty path returns the
// defaults.
func Load(path string) (*Set, error) {
	set := Default()
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors file: %w", err)
	}
	if err := yaml.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to parse selectors file: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks that the selectors every flow depends on are set.
func (s *Set) Validate() error {
	required := map[string]string{
		"login_marker":     s.LoginMarker,
		"feed_item":        s.FeedItem,
		"detail_container": s.DetailContainer,
		"profile_card":     s.ProfileCard,
		"input_box":        s.InputBox,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("selector %s must not be empty", name)
		}
	}
	return nil
}
