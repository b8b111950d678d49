package search

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// cleanRawContent turns raw page content into whitespace-normalized text.
// Content that does not look like HTML is only normalized.
func cleanRawContent(raw string) string {
	if raw == "" {
		return ""
	}
	text := raw
	if strings.Contains(raw, "<") {
		text = htmlText(raw)
	}
	return Truncate(strings.Join(strings.Fields(text), " "), MaxRawContent)
}

// htmlText collects the text nodes of an HTML document, skipping script,
// style and noscript elements.
func htmlText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.StartTagToken:
			if name, _ := z.TagName(); skipped(string(name)) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); skipped(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func skipped(tag string) bool {
	switch tag {
	case "script", "style", "noscript":
		return true
	}
	return false
}

// Truncate cuts s to at most n bytes on a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := n
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}
