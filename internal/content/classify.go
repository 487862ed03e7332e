// Package content decides whether message text is rendered as HTML or
// forced to plain text.
package content

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Kind is the classification result for a message body.
type Kind int

const (
	// Plain means the body is sent as text/plain.
	Plain Kind = iota
	// HTML means the body is sent as text/html.
	HTML
)

// Classify parses text as an HTML fragment and decides how to render it.
// A body is plain when parsing fails, when the recipient group does not
// permit HTML, or when the fragment is a single text node: a bare line
// of text must never be wrapped as HTML just because it parses. Only
// genuinely structured markup is rendered as HTML.
//
// The returned string is the body to send. When markup is present but
// HTML is not permitted, tags are stripped and inner text preserved, so
// markup never leaks into a text/plain part. Classify is idempotent:
// re-classifying its own plain output yields Plain with the same text.
func Classify(text string, allowHTML bool) (Kind, string) {
	nodes, err := parseFragment(text)
	if err != nil {
		return Plain, text
	}

	if len(nodes) == 0 {
		return Plain, text
	}
	if len(nodes) == 1 && nodes[0].Type == html.TextNode {
		return Plain, text
	}

	markup := false
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			markup = true
			break
		}
	}
	if !markup {
		return Plain, text
	}

	if allowHTML {
		return HTML, text
	}
	return Plain, stripTags(nodes)
}

// parseFragment parses text in a body element context.
func parseFragment(text string) ([]*html.Node, error) {
	ctx := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
	return html.ParseFragment(strings.NewReader(text), ctx)
}

// stripTags flattens the fragment to its text content, dropping all
// element markup.
func stripTags(nodes []*html.Node) string {
	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range nodes {
		walk(n)
	}

	return b.String()
}
