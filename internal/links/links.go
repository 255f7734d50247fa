// Package links extracts article links and readable text from markdown documents.
package links

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// wikiScheme marks destinations rewritten from [[wiki links]].
const wikiScheme = "wiki:"

var wikiLink = regexp.MustCompile(`\[\[([^\[\]|<>\n]+)(?:\|([^\[\]<>\n]*))?\]\]`)

// rewriteWikiLinks turns [[Target]] and [[Target|label]] into inline markdown
// links so that the markdown parser reports them in document order.
func rewriteWikiLinks(body string) string {
	return wikiLink.ReplaceAllStringFunc(body, func(m string) string {
		sub := wikiLink.FindStringSubmatch(m)
		target := strings.TrimSpace(sub[1])
		label := strings.TrimSpace(sub[2])
		if label == "" {
			label = target
		}
		return "[" + label + "](<" + wikiScheme + target + ">)"
	})
}

func parse(body string) (ast.Node, []byte) {
	src := []byte(rewriteWikiLinks(body))
	return goldmark.DefaultParser().Parse(text.NewReader(src)), src
}

// Extract parses body as markdown and returns all non-fragment link destinations.
func Extract(body string) []string {
	doc, _ := parse(body)

	var links []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := string(link.Destination)
		if dest != "" && !strings.HasPrefix(dest, "#") {
			links = append(links, dest)
		}
		return ast.WalkContinue, nil
	})
	return links
}

// Titles returns the distinct article titles linked from body, in document
// order. External links are ignored. Relative links name the target by file
// name, so "Graph_theory.md" and "../Graph%20theory" both yield "Graph theory".
func Titles(body string) []string {
	seen := make(map[string]bool)
	var titles []string
	for _, dest := range Extract(body) {
		title := TitleOf(dest)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		titles = append(titles, title)
	}
	return titles
}

// TitleOf converts a link destination into an article title. It returns the
// empty string for external links.
func TitleOf(dest string) string {
	if t, ok := strings.CutPrefix(dest, wikiScheme); ok {
		return normalize(t)
	}
	if strings.Contains(dest, "://") || strings.HasPrefix(dest, "mailto:") {
		return ""
	}
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	if unescaped, err := url.PathUnescape(dest); err == nil {
		dest = unescaped
	}
	dest = strings.TrimSuffix(dest, "/")
	base := path.Base(dest)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	base = strings.TrimSuffix(base, ".md")
	return normalize(strings.ReplaceAll(base, "_", " "))
}

func normalize(title string) string {
	if i := strings.Index(title, "#"); i >= 0 {
		title = title[:i]
	}
	return strings.Join(strings.Fields(title), " ")
}

// PlainText returns the readable text of a markdown body: headings,
// paragraphs, list items and link labels, one block per line. Code blocks
// and raw HTML are dropped.
func PlainText(body string) string {
	doc, src := parse(body)

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		default:
			if !entering && n.Type() == ast.TypeBlock && n.FirstChild() != nil && n.FirstChild().Type() == ast.TypeInline {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
