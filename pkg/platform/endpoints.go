package platform

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// BaseURL is the web origin of the site
	BaseURL = "https://www.xiaohongshu.com"

	// ExploreURL is the landing page that requires a login
	ExploreURL = BaseURL + "/explore"

	// SearchPath is the search results page
	SearchPath = "/search_result"

	// SearchSource is the source parameter the site sends from the explore search box
	SearchSource = "web_explore_feed"
)

var (
	shortLinkPattern = regexp.MustCompile(`https?://(?:www\.)?xhslink\.com/[A-Za-z0-9/._~%-]+`)
	canonicalPattern = regexp.MustCompile(`https?://(?:www\.)?xiaohongshu\.com/[A-Za-z0-9/._~%?&=+-]+`)

	notePathPattern = regexp.MustCompile(`^/(?:explore|discovery/item|search_result|user/profile/[0-9a-f]+)/([0-9a-f]{24})/?$`)
)

// SearchURL returns the search results page for keyword.
func SearchURL(keyword string) string {
	params := url.Values{}
	params.Set("keyword", keyword)
	params.Set("source", SearchSource)
	return BaseURL + SearchPath + "?" + params.Encode()
}

// NoteURL returns the canonical detail URL of a note id.
func NoteURL(id string) string {
	if id == "" {
		return ""
	}
	return BaseURL + "/explore/" + id
}

// ExtractURL pulls the first share link out of free text. Short links take
// precedence over canonical links; text without either is returned as is.
func ExtractURL(text string) string {
	if m := shortLinkPattern.FindString(text); m != "" {
		return m
	}
	if m := canonicalPattern.FindString(text); m != "" {
		return m
	}
	return text
}

// NormalizeURL turns any URL that refers to a note into a stable identity:
// host lowercased, query and fragment dropped, and the known note routes
// collapsed onto /explore/<id>. Relative URLs resolve against BaseURL.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if !u.IsAbs() {
		base, _ := url.Parse(BaseURL)
		u = base.ResolveReference(u)
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""

	if m := notePathPattern.FindStringSubmatch(u.Path); m != nil {
		return NoteURL(m[1])
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// AbsoluteURL resolves a possibly relative href against BaseURL, keeping
// its query.
func AbsoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	base, _ := url.Parse(BaseURL)
	return base.ResolveReference(u).String()
}

// NoteID returns the 24-hex id of a note URL, or "".
func NoteID(raw string) string {
	normalized := NormalizeURL(raw)
	prefix := BaseURL + "/explore/"
	if strings.HasPrefix(normalized, prefix) {
		return strings.TrimPrefix(normalized, prefix)
	}
	return ""
}

// IsProfileURL reports whether raw points at a user profile page.
func IsProfileURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	return (host == "www.xiaohongshu.com" || host == "xiaohongshu.com") &&
		strings.HasPrefix(u.Path, "/user/profile/")
}

// IsCaptchaURL reports whether the site bounced the browser to its captcha
// page.
func IsCaptchaURL(raw, captchaPath string) bool {
	return captchaPath != "" && strings.Contains(raw, captchaPath)
}
