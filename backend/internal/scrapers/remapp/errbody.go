package remapp

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// errorSnippet shortens a failed response body for error messages. Gateways
// in front of the API answer throttling and outages with HTML pages; for
// those only the title and visible text are kept.
func errorSnippet(contentType string, body []byte) string {
	text := strings.TrimSpace(string(body))
	if strings.Contains(contentType, "html") || strings.HasPrefix(strings.ToLower(text), "<!doctype html") || strings.HasPrefix(text, "<html") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			doc.Find("script, style, noscript").Remove()
			title := strings.TrimSpace(doc.Find("title").First().Text())
			visible := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
			switch {
			case title != "" && visible != "" && !strings.HasPrefix(visible, title):
				text = title + ": " + visible
			case visible != "":
				text = visible
			default:
				text = title
			}
		}
	}
	return truncateRunes(text, maxErrorBody)
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
