package utils

import (
	"html"
	"regexp"
	"strings"

	nethtml "golang.org/x/net/html"
)

const (
	MaxTitleLength       = 150
	MaxDescriptionLength = 2000
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+[^\s<>"')\].,;:!?]`)

// NormalizeWhitespace collapses every whitespace run to a single space and trims both ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to max bytes, replacing the tail with suffix when it had to cut.
func Truncate(s string, max int, suffix string) string {
	if len(s) <= max {
		return s
	}
	if max <= len(suffix) {
		return s[:max]
	}
	return strings.ToValidUTF8(s[:max-len(suffix)], "") + suffix
}

// Cut truncates s to max bytes without a suffix.
func Cut(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.ToValidUTF8(s[:max], "")
}

// StripTags returns the text content of an HTML fragment. Entities are
// decoded and adjacent text nodes are separated by a space.
func StripTags(fragment string) string {
	z := nethtml.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return b.String()
		case nethtml.TextToken:
			b.Write(z.Text())
		case nethtml.StartTagToken, nethtml.EndTagToken, nethtml.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

// CleanHTML unescapes, strips tags and collapses whitespace.
func CleanHTML(s string) string {
	return NormalizeWhitespace(StripTags(html.UnescapeString(s)))
}

// ExtractURL returns the first http(s) URL in text.
func ExtractURL(text string) string {
	return urlPattern.FindString(text)
}

// ExtractAllURLs returns every http(s) URL in text.
func ExtractAllURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}
