package browsertest

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"rednote/pkg/auth"
	"rednote/pkg/platform"
	"rednote/pkg/selectors"
)

// Note is one simulated note.
type Note struct {
	ID       string
	Title    string
	Content  string
	Author   string
	Tags     []string
	Images   []string
	Likes    string
	Collects string
	Comments string

	Follows    string
	Fans       string
	LikedTotal string
	// NoProfileCard makes hovering the author show nothing.
	NoProfileCard bool

	Liked       bool
	CommentList []Comment
}

// Comment is one simulated comment.
type Comment struct {
	Author  string
	Content string
	Likes   string
	Time    string
}

// Site simulates the pages the engine drives: home and explore with the
// login state, search and profile feeds that grow on scroll, detail
// overlays, the author hover card and the like and comment controls.
type Site struct {
	mu sync.Mutex

	Notes map[string]*Note
	// Feed lists note ids in feed order; an id may repeat.
	Feed []string
	// PageSize is how many feed items render initially and per scroll.
	PageSize int
	LoggedIn bool
	// Captcha bounces the next navigation to the captcha page.
	Captcha bool
	// AutoScan logs the user in once the QR code was waited for and the
	// login marker is awaited.
	AutoScan bool
	// SessionJar is what the site sets after a successful scan.
	SessionJar []auth.Cookie

	sel        *selectors.Set
	likeClicks int
	posted     map[string][]string
}

// NewSite builds a site over notes, with the feed in the given order.
func NewSite(notes []*Note, feed []string) *Site {
	s := &Site{
		Notes:    map[string]*Note{},
		Feed:     feed,
		PageSize: 4,
		LoggedIn: true,
		sel:      selectors.Default(),
		posted:   map[string][]string{},
		SessionJar: []auth.Cookie{
			{Name: "web_session", Value: "0400697a8b9c", Domain: ".xiaohongshu.com", Path: "/", Expires: 1893456000, HTTPOnly: true, Secure: true},
		},
	}
	for _, n := range notes {
		s.Notes[n.ID] = n
	}
	return s
}

// LikeClicks counts clicks on the like button.
func (s *Site) LikeClicks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.likeClicks
}

// Posted returns the comments submitted on note id.
func (s *Site) Posted(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.posted[id]...)
}

func (s *Site) note(id string) *Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Notes[id]
}

func (s *Site) loggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LoggedIn
}

// pageState is the per-tab state of the simulation.
type pageState struct {
	feedURL  string
	rendered []string
	current  string
	qrSeen   bool
}

// Page builds a FakePage wired to the site. Its signature fits
// Launcher.NewPage.
func (s *Site) Page(int) *FakePage {
	st := &pageState{}
	p := NewPage("about:blank", "<html><body></body></html>")

	p.OnNavigate = func(p *FakePage, url string) { s.navigate(p, st, url) }
	p.OnReload = func(p *FakePage) {
		u, _ := p.URL(context.Background())
		if platform.IsCaptchaURL(u, s.sel.CaptchaPath) {
			s.navigate(p, st, platform.BaseURL)
		}
	}
	p.OnClickNth = func(p *FakePage, selector string, index int) error {
		if index >= len(st.rendered) {
			return nil
		}
		s.openDetail(p, st, st.rendered[index])
		return nil
	}
	p.OnClickText = func(p *FakePage, text string) error { return nil }
	p.OnHover = map[string]func(*FakePage){
		s.sel.ProfileHover: func(p *FakePage) {
			if n := s.note(st.current); n != nil && !n.NoProfileCard {
				p.Append("body", profileCardHTML(n))
			}
		},
	}
	p.OnClick = map[string]func(*FakePage) error{
		s.sel.DetailClose: func(p *FakePage) error {
			p.Remove(s.sel.DetailContainer)
			p.Remove(".user-content")
			p.SetURL(st.feedURL)
			st.current = ""
			return nil
		},
		s.sel.LikeButton: func(p *FakePage) error {
			s.mu.Lock()
			s.likeClicks++
			if n := s.Notes[st.current]; n != nil {
				n.Liked = true
			}
			s.mu.Unlock()
			p.SetAttr(s.sel.LikeState, "xlink:href", "#liked")
			return nil
		},
		s.sel.CommentSubmit: func(p *FakePage) error {
			fills := p.Fills(s.sel.CommentInput)
			if len(fills) == 0 {
				return nil
			}
			s.mu.Lock()
			s.posted[st.current] = append(s.posted[st.current], fills[len(fills)-1])
			s.mu.Unlock()
			return nil
		},
	}
	p.OnWheel = func(p *FakePage, dy float64) {
		if st.feedURL == "" || st.current != "" {
			return
		}
		more := s.nextBatch(len(st.rendered))
		if len(more) == 0 {
			return
		}
		var b strings.Builder
		for i, id := range more {
			b.WriteString(feedItemHTML(len(st.rendered)+i, s.note(id)))
		}
		st.rendered = append(st.rendered, more...)
		p.Append(s.sel.FeedContainer, b.String())
	}
	p.BeforeWait = func(p *FakePage, selector string) {
		switch selector {
		case s.sel.QRCode:
			st.qrSeen = true
		case s.sel.LoginMarker:
			s.mu.Lock()
			scan := s.AutoScan && st.qrSeen && !s.LoggedIn
			if scan {
				s.LoggedIn = true
			}
			jar := s.SessionJar
			s.mu.Unlock()
			if scan {
				p.Remove(s.sel.LoginContainer)
				p.Append("body", sidebarHTML(true))
				p.SetJar(append(p.Jar(), jar...))
			}
		}
	}
	return p
}

func (s *Site) nextBatch(from int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if from >= len(s.Feed) {
		return nil
	}
	end := from + s.PageSize
	if end > len(s.Feed) {
		end = len(s.Feed)
	}
	return append([]string(nil), s.Feed[from:end]...)
}

func (s *Site) navigate(p *FakePage, st *pageState, url string) {
	s.mu.Lock()
	captcha := s.Captcha
	s.Captcha = false
	s.mu.Unlock()
	if captcha {
		p.SetURL(platform.BaseURL + s.sel.CaptchaPath + "?redirectPath=" + url)
		p.SetHTML("<html><body><div class=\"captcha\"></div></body></html>")
		return
	}

	st.current = ""
	st.rendered = nil
	st.feedURL = ""

	if id := platform.NoteID(url); id != "" {
		if n := s.note(id); n != nil {
			st.current = id
			p.SetHTML(pageHTML(s.loggedIn(), detailHTML(n)))
			return
		}
		p.SetHTML(pageHTML(s.loggedIn(), `<div class="not-found">当前笔记暂时无法浏览</div>`))
		return
	}

	if strings.Contains(url, platform.SearchPath) || platform.IsProfileURL(url) {
		st.feedURL = url
		st.rendered = s.nextBatch(0)
		var b strings.Builder
		if strings.Contains(url, platform.SearchPath) {
			b.WriteString(filterHTML(s.sel))
		}
		b.WriteString(`<div class="feeds-container">`)
		for i, id := range st.rendered {
			b.WriteString(feedItemHTML(i, s.note(id)))
		}
		b.WriteString(`</div>`)
		p.SetHTML(pageHTML(s.loggedIn(), b.String()))
		return
	}

	p.SetHTML(pageHTML(s.loggedIn(), `<div class="explore-page"></div>`))
}

func (s *Site) openDetail(p *FakePage, st *pageState, id string) {
	n := s.note(id)
	if n == nil {
		return
	}
	st.current = id
	p.Append("body", detailHTML(n))
	p.SetURL(platform.NoteURL(id) + "?xsec_token=tok&xsec_source=pc_feed")
}

func pageHTML(loggedIn bool, main string) string {
	return "<html><body>" + sidebarHTML(loggedIn) + main + "</body></html>"
}

func sidebarHTML(loggedIn bool) string {
	if loggedIn {
		return `<div class="side-bar"><ul><li class="user side-bar-component"><a class="channel">我</a></li></ul></div>`
	}
	return `<div class="login-container"><img class="qrcode-img" src="data:image/png;base64,aGVsbG8gcXI="/></div>`
}

func filterHTML(sel *selectors.Set) string {
	var b strings.Builder
	b.WriteString(`<div class="search-layout"><div class="filter"><span>筛选</span></div><div class="filter-panel">`)
	for _, group := range []map[string]string{sel.SortLabels, sel.PeriodLabels} {
		for _, label := range group {
			b.WriteString("<span>" + html.EscapeString(label) + "</span>")
		}
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

func feedItemHTML(i int, n *Note) string {
	if n == nil {
		return fmt.Sprintf(`<section class="note-item" data-index="%d"></section>`, i)
	}
	return fmt.Sprintf(`<section class="note-item" data-index="%d"><a class="cover mask ld" href="/explore/%s?xsec_token=tok"></a><div class="footer"><a class="title"><span>%s</span></a></div></section>`,
		i, n.ID, html.EscapeString(n.Title))
}

func detailHTML(n *Note) string {
	var b strings.Builder
	b.WriteString(`<div id="noteContainer" class="note-detail-mask"><div class="close-circle"></div><div class="note-container">`)

	b.WriteString(`<div class="media-container">`)
	for _, img := range n.Images {
		fmt.Fprintf(&b, `<img src="%s"/>`, html.EscapeString(img))
	}
	b.WriteString(`</div>`)

	fmt.Fprintf(&b, `<div class="author-container"><div class="info"><a class="name"><span class="username">%s</span></a></div></div>`,
		html.EscapeString(n.Author))

	b.WriteString(`<div class="note-scroller"><div class="note-content">`)
	fmt.Fprintf(&b, `<div id="detail-title" class="title">%s</div>`, html.EscapeString(n.Title))
	fmt.Fprintf(&b, `<div id="detail-desc" class="desc"><span class="note-text"><span>%s</span>`, html.EscapeString(n.Content))
	for _, tag := range n.Tags {
		fmt.Fprintf(&b, `<a class="tag">#%s</a>`, html.EscapeString(tag))
	}
	b.WriteString(`</span></div></div>`)

	b.WriteString(`<div class="comments-container"><div class="list-container">`)
	for _, c := range n.CommentList {
		fmt.Fprintf(&b, `<div class="comment-item"><div class="author"><a class="name">%s</a></div><div class="content"><span class="note-text">%s</span></div><div class="info"><div class="date"><span>%s</span></div><div class="interactions"><div class="like"><span class="count">%s</span></div></div></div></div>`,
			html.EscapeString(c.Author), html.EscapeString(c.Content), html.EscapeString(c.Time), html.EscapeString(c.Likes))
	}
	b.WriteString(`</div></div></div>`)

	likeHref := "#like"
	if n.Liked {
		likeHref = "#liked"
	}
	b.WriteString(`<div class="interactions engage-bar"><div class="input-box">`)
	b.WriteString(`<div class="content-edit"><span class="inner"><span>说点什么...</span></span><p class="content-input" contenteditable="true"></p></div>`)
	fmt.Fprintf(&b, `<div class="engage-bar-style"><span class="like-wrapper like-active"><span class="like-lottie"><svg><use xlink:href="%s"></use></svg></span><span class="count">%s</span></span>`,
		likeHref, html.EscapeString(n.Likes))
	fmt.Fprintf(&b, `<span class="collect-wrapper"><span class="count">%s</span></span><span class="chat-wrapper"><span class="count">%s</span></span></div>`,
		html.EscapeString(n.Collects), html.EscapeString(n.Comments))
	b.WriteString(`</div><div class="bottom"><button class="btn submit">发送</button></div></div>`)

	b.WriteString(`</div></div>`)
	return b.String()
}

func profileCardHTML(n *Note) string {
	return fmt.Sprintf(`<div class="user-content"><div class="interaction-info"><a class="interaction"><span class="count">%s</span><span>关注</span></a><a class="interaction"><span class="count">%s</span><span>粉丝</span></a><a class="interaction"><span class="count">%s</span><span>获赞与收藏</span></a></div></div>`,
		html.EscapeString(n.Follows), html.EscapeString(n.Fans), html.EscapeString(n.LikedTotal))
}
