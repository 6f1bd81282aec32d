package enrich

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// truncationMarker is appended when cleaned content is cut at
// MaxContentLength so downstream consumers know content is incomplete.
const truncationMarker = "... [Content truncated]"

// skippedElements are elements whose contents are not meaningful page text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"title":    true,
}

// CleanResult is the outcome of cleaning fetched content.
type CleanResult struct {
	// Text is the cleaned, whitespace-collapsed content.
	Text string

	// Title is the page title, when one could be extracted.
	Title string

	// Truncated reports whether Text was cut at MaxContentLength.
	Truncated bool
}

// Cleaner strips fetched HTML down to readable text bounded by
// MaxContentLength. Plain-text responses pass through with the same
// whitespace and length governance.
type Cleaner struct {
	cfg       Config
	converter *markdownConverter
}

// NewCleaner creates a cleaner from the given configuration.
func NewCleaner(cfg Config) *Cleaner {
	return &Cleaner{
		cfg:       cfg,
		converter: newMarkdownConverter(),
	}
}

// Clean converts raw fetched bytes into bounded readable text. srcURL is
// the URL the content came from; it is used only for title extraction and
// relative-link resolution and may be empty. Non-HTML, non-text content
// types yield a KindUnsupportedContent failure; binary payloads served
// under a text content type yield KindDecode.
func (c *Cleaner) Clean(body []byte, contentType, srcURL string) (*CleanResult, *FetchError) {
	if !supportedContentType(contentType) {
		return nil, &FetchError{
			Kind: KindUnsupportedContent,
			Err:  fmt.Errorf("content type %q", contentType),
		}
	}

	decoded, err := decodeToUTF8(body, contentType)
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, Err: err}
	}

	// Plain text needs no markup handling.
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/plain") || strings.HasPrefix(ct, "text/markdown") {
		text, truncated := c.bound(collapseWhitespace(decoded))
		return &CleanResult{Text: text, Truncated: truncated}, nil
	}

	var text string
	if c.cfg.Format == FormatMarkdown {
		text = c.converter.convert(decoded)
	} else {
		text = collapseWhitespace(visibleText(decoded))
	}

	text, truncated := c.bound(text)
	return &CleanResult{
		Text:      text,
		Title:     extractTitle(decoded, srcURL),
		Truncated: truncated,
	}, nil
}

// bound truncates text to MaxContentLength runes, appending the truncation
// marker. The cut never splits a multi-byte character.
func (c *Cleaner) bound(text string) (string, bool) {
	runes := []rune(text)
	if len(runes) <= c.cfg.MaxContentLength {
		return text, false
	}
	return string(runes[:c.cfg.MaxContentLength]) + truncationMarker, true
}

// decodeToUTF8 decodes body honoring a declared or sniffed charset, falling
// back to a Latin-1 interpretation of undecodable bytes. NUL bytes mark the
// payload as binary rather than mislabeled text; binary payloads are
// rejected instead of decoded into garbage. UTF-16 bodies carry NUL bytes
// legitimately, so a BOM exempts them from the gate.
func decodeToUTF8(body []byte, contentType string) (string, error) {
	if !hasUTF16BOM(body) && bytes.IndexByte(body, 0) >= 0 {
		return "", fmt.Errorf("body contains NUL bytes, not decodable as text")
	}

	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err == nil {
		if decoded, readErr := io.ReadAll(r); readErr == nil {
			return string(decoded), nil
		}
	}

	// Latin-1 maps every remaining byte to a code point.
	runes := make([]rune, len(body))
	for i, b := range body {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

// hasUTF16BOM reports whether body starts with a UTF-16 byte order mark.
func hasUTF16BOM(body []byte) bool {
	return len(body) >= 2 &&
		((body[0] == 0xfe && body[1] == 0xff) || (body[0] == 0xff && body[1] == 0xfe))
}

// visibleText extracts the text content of an HTML fragment, skipping
// script/style and other non-content elements entirely.
func visibleText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		// Regex-based strip as a fallback for unparseable input.
		return basicHTMLStrip(htmlContent)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return sb.String()
}

// extractTitle returns the page title: readability's extraction when it
// succeeds, otherwise the raw <title> element text.
func extractTitle(htmlContent, srcURL string) string {
	if parsed, err := url.Parse(srcURL); err == nil && parsed.Host != "" {
		article, err := readability.FromReader(strings.NewReader(htmlContent), parsed)
		if err == nil && strings.TrimSpace(article.Title) != "" {
			return strings.TrimSpace(article.Title)
		}
	}
	return titleElementText(htmlContent)
}

// titleElementText extracts the <title> element text from HTML.
func titleElementText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var find func(*html.Node)
	find = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	return title
}

// collapseWhitespace reduces runs of whitespace (including newlines) to
// single spaces and trims the ends.
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
