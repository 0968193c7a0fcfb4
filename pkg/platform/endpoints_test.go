package platform

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchURL(t *testing.T) {
	result := SearchURL("咖啡 拉花")
	u, err := url.Parse(result)
	require.NoError(t, err)

	assert.Equal(t, "www.xiaohongshu.com", u.Host)
	assert.Equal(t, SearchPath, u.Path)
	assert.Equal(t, "咖啡 拉花", u.Query().Get("keyword"))
	assert.Equal(t, SearchSource, u.Query().Get("source"))
}

func TestExtractURL(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "short link in prose",
			text:     "52 这杯咖啡绝了 http://xhslink.com/a/Xy9Zk1 复制本条信息，打开【小红书】App查看精彩内容！",
			expected: "http://xhslink.com/a/Xy9Zk1",
		},
		{
			name:     "canonical link",
			text:     "see https://www.xiaohongshu.com/explore/67da6467000000000602ae8a?xsec_token=AB1 now",
			expected: "https://www.xiaohongshu.com/explore/67da6467000000000602ae8a?xsec_token=AB1",
		},
		{
			name:     "short link wins over canonical",
			text:     "https://www.xiaohongshu.com/explore/67da6467000000000602ae8a https://xhslink.com/b/1",
			expected: "https://xhslink.com/b/1",
		},
		{
			name:     "no link",
			text:     "just some words",
			expected: "just some words",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractURL(tt.text))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	const id = "67da6467000000000602ae8a"
	canonical := "https://www.xiaohongshu.com/explore/" + id

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"query stripped", canonical + "?xsec_token=ABf&xsec_source=pc_feed", canonical},
		{"relative", "/explore/" + id, canonical},
		{"discovery route", "https://www.xiaohongshu.com/discovery/item/" + id, canonical},
		{"search route", "https://www.xiaohongshu.com/search_result/" + id + "?xsec_token=x", canonical},
		{"profile route", "https://www.xiaohongshu.com/user/profile/5f1e2d3c4b5a6978/" + id, canonical},
		{"uppercase host", "https://WWW.XIAOHONGSHU.COM/explore/" + id + "#comments", canonical},
		{"other page", "https://www.xiaohongshu.com/user/profile/5f1e2d3c4b5a6978/", "https://www.xiaohongshu.com/user/profile/5f1e2d3c4b5a6978"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.raw))
		})
	}

	assert.Equal(t, id, NoteID(canonical+"?a=b"))
	assert.Empty(t, NoteID("https://www.xiaohongshu.com/explore"))
}

func TestIsProfileURL(t *testing.T) {
	assert.True(t, IsProfileURL("https://www.xiaohongshu.com/user/profile/5f1e2d3c4b5a6978"))
	assert.False(t, IsProfileURL("https://www.xiaohongshu.com/explore/67da6467000000000602ae8a"))
	assert.False(t, IsProfileURL("coffee"))
}

func TestIsCaptchaURL(t *testing.T) {
	assert.True(t, IsCaptchaURL("https://www.xiaohongshu.com/web-login/captcha?redirect=x", "/web-login/captcha"))
	assert.False(t, IsCaptchaURL(BaseURL, "/web-login/captcha"))
	assert.False(t, IsCaptchaURL(BaseURL, ""))
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://www.xiaohongshu.com/explore/abc?xsec_token=1", AbsoluteURL("/explore/abc?xsec_token=1"))
	assert.Equal(t, "https://cdn.example/x.jpg", AbsoluteURL("https://cdn.example/x.jpg"))
	assert.Empty(t, AbsoluteURL("  "))
}
