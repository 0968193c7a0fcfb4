// Package platform knows the site's URL scheme: where search and explore
// live, how a share text embeds a note link, and how note URLs collapse onto
// one identity for deduplication.
//
// # Usage
//
//	target := platform.ExtractURL("看看这篇 http://xhslink.com/a/AbC123 复制链接")
//	key := platform.NormalizeURL(target)
//
// Short links are returned unresolved; the browser follows the redirect.
package platform
