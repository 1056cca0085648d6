package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// CleanedHTML is the readable part of a page: its title and visible text.
type CleanedHTML struct {
	Title     string
	Text      string
	Truncated bool
}

// cleanHTML reduces rawHTML to its title and visible text, removing
// scripts, styles and hidden elements. Block elements become line breaks.
func cleanHTML(rawHTML string, maxLength int) (*CleanedHTML, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &CleanedHTML{Title: extractTitle(doc)}

	var b textBuilder
	b.max = maxLength
	b.walk(doc)

	result.Text = strings.TrimSpace(b.String())
	result.Truncated = b.truncated
	return result, nil
}

type textBuilder struct {
	strings.Builder
	max       int
	truncated bool
}

func (b *textBuilder) walk(n *html.Node) {
	if b.truncated {
		return
	}

	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		b.writeText(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if isSkippedElement(tag) || isHidden(n) {
			return
		}
		if isBlockElement(tag) {
			b.lineBreak()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c)
		}
		if isBlockElement(tag) {
			b.lineBreak()
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c)
	}
}

func (b *textBuilder) writeText(data string) {
	text := strings.Join(strings.Fields(data), " ")
	if text == "" {
		return
	}
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		text = " " + text
	}
	if b.Len()+len(text) > b.max {
		remaining := b.max - b.Len()
		if remaining > 0 {
			b.WriteString(text[:remaining])
		}
		b.WriteString("...")
		b.truncated = true
		return
	}
	b.WriteString(text)
}

func (b *textBuilder) lineBreak() {
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
}

// isSkippedElement returns true for elements that never render text
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "head", "script", "style", "noscript", "template", "iframe", "embed", "object", "svg":
		return true
	}
	return false
}

func isHidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "hidden":
			return true
		case "aria-hidden":
			if attr.Val == "true" {
				return true
			}
		case "style":
			style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
			if strings.Contains(style, "display:none") {
				return true
			}
		}
	}
	return false
}

// isBlockElement returns true for block-level elements (for formatting)
func isBlockElement(tagName string) bool {
	switch tagName {
	case "div", "p", "section", "article", "header", "footer", "nav", "main", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "table", "tr",
		"form", "fieldset", "blockquote", "pre", "br":
		return true
	}
	return false
}

// extractTitle extracts the page title from the document
func extractTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
			if title != "" {
				return
			}
		}
	}
	traverse(doc)
	return title
}
