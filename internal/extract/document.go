package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements break the text flow into separate lines.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Footer: true, atom.Form: true, atom.H1: true,
	atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Label: true, atom.Li: true, atom.Main: true,
	atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true,
	atom.Table: true, atom.Tbody: true, atom.Td: true, atom.Tfoot: true, atom.Th: true,
	atom.Thead: true, atom.Tr: true, atom.Ul: true,
}

// document is a parsed detail page: the DOM plus its visible text as
// whitespace-collapsed, non-empty lines.
type document struct {
	dom   *goquery.Document
	base  *url.URL
	lines []string
}

func parseDocument(body []byte, base *url.URL) (*document, error) {
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	dom.Find("script, style, noscript, template").Remove()

	var sb strings.Builder
	for _, n := range dom.Find("body").Nodes {
		renderText(&sb, n)
	}
	return &document{
		dom:   dom,
		base:  base,
		lines: splitLines(sb.String()),
	}, nil
}

func renderText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		block := blockElements[n.DataAtom]
		if block {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderText(sb, c)
		}
		if block {
			sb.WriteByte('\n')
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(sb, c)
	}
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if collapsed := collapse(line); collapsed != "" {
			lines = append(lines, collapsed)
		}
	}
	return lines
}

// collapse trims s and folds every whitespace run into one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// nodeText renders a selection like the page text, on a single line.
func nodeText(s *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range s.Nodes {
		renderText(&sb, n)
	}
	return strings.Join(splitLines(sb.String()), " ")
}

// headerIndex prefers a line that starts with header over one that merely
// mentions it.
func (d *document) headerIndex(header string) int {
	for i, line := range d.lines {
		if matchesHeader(line, header) {
			return i
		}
	}
	return d.indexOf(header)
}

// indexOf returns the first line containing needle, or -1.
func (d *document) indexOf(needle string) int {
	for i, line := range d.lines {
		if strings.Contains(line, needle) {
			return i
		}
	}
	return -1
}

func (d *document) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if d.base == nil {
		return ref.String()
	}
	return d.base.ResolveReference(ref).String()
}
