package enrich

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

// Pre-compiled to avoid recompilation per cleaned page.
var (
	scriptRe       = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe        = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe          = regexp.MustCompile(`(?s)<[^>]*>`)
	excessLinesRe  = regexp.MustCompile(`\n{3,}`)
)

// chromeElements are page-chrome elements removed before conversion when no
// main content area is found.
var chromeElements = []string{
	"nav", "header", "footer", "aside", "script", "style", "noscript",
	"iframe", "form", "input", "button",
}

// markdownConverter turns fetched HTML into markdown focused on the page's
// main content area.
type markdownConverter struct {
	converter *md.Converter
}

func newMarkdownConverter() *markdownConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &markdownConverter{converter: converter}
}

// convert transforms HTML into cleaned markdown. On conversion failure it
// falls back to plain visible-text extraction so the caller always gets
// usable content.
func (m *markdownConverter) convert(htmlContent string) string {
	content := mainContent(htmlContent)

	markdown, err := m.converter.ConvertString(content)
	if err != nil {
		return collapseWhitespace(visibleText(htmlContent))
	}
	return tidyMarkdown(markdown)
}

// mainContent returns the HTML of the page's main content area: the first
// of <main>, <article>, or [role=main], falling back to <body> with page
// chrome removed.
func mainContent(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return basicHTMLStrip(htmlContent)
	}

	for _, tag := range []string{"main", "article"} {
		if n := findElement(doc, func(n *html.Node) bool { return n.Data == tag }); n != nil {
			return renderNode(n)
		}
	}
	if n := findElement(doc, func(n *html.Node) bool { return hasAttr(n, "role", "main") }); n != nil {
		return renderNode(n)
	}

	removeElements(doc, chromeElements)

	if body := findElement(doc, func(n *html.Node) bool { return n.Data == "body" }); body != nil {
		return renderNode(body)
	}
	return htmlContent
}

// findElement returns the first element node matching the predicate.
func findElement(root *html.Node, match func(*html.Node) bool) *html.Node {
	var result *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if result != nil {
			return
		}
		if n.Type == html.ElementNode && match(n) {
			result = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)
	return result
}

func hasAttr(n *html.Node, key, val string) bool {
	for _, a := range n.Attr {
		if a.Key == key && a.Val == val {
			return true
		}
	}
	return false
}

// removeElements detaches all elements with the given tag names.
func removeElements(root *html.Node, tags []string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && tagSet[n.Data] {
			toRemove = append(toRemove, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(root)

	for _, n := range toRemove {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	html.Render(&sb, n)
	return sb.String()
}

// basicHTMLStrip removes scripts, styles, and remaining tags with regexes.
// Last resort when the HTML parser cannot handle the input.
func basicHTMLStrip(content string) string {
	content = scriptRe.ReplaceAllString(content, "")
	content = styleRe.ReplaceAllString(content, "")
	content = tagRe.ReplaceAllString(content, " ")
	return collapseWhitespace(content)
}

// tidyMarkdown normalizes converted markdown: no excessive blank lines, no
// trailing line whitespace.
func tidyMarkdown(content string) string {
	content = excessLinesRe.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
