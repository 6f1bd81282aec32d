package enrich

import (
	"regexp"
	"strings"
)

// urlPattern matches absolute http(s) URLs: the scheme followed by a run of
// characters that cannot appear unescaped around a URL in prose (whitespace,
// angle brackets, quotes).
var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// trailingPunct lists characters stripped from the end of a match; they are
// almost always sentence punctuation rather than part of the URL.
const trailingPunct = ".,;:!?)\"'"

// ExtractURLs scans text and returns the distinct absolute URLs it contains,
// in order of first appearance. Malformed near-matches are simply not
// extracted; the result is empty (never nil-panicking) for text without URLs.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, m := range matches {
		u := strings.TrimRight(m, trailingPunct)
		// A bare scheme left after trimming is not a URL.
		if u == "" || u == "http://" || u == "https://" {
			continue
		}
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}
