package duplicate

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nonContentSelector matches elements whose text never counts as page content.
const nonContentSelector = "script, style, noscript"

// Normalize extracts comparable text from raw page markup.
//
// Script, style and noscript elements are removed together with their text.
// The remaining text nodes are joined with a single space, whitespace runs
// are collapsed, and the result is trimmed and lowercased.
// Malformed markup is parsed permissively and never produces an error.
func Normalize(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		// The HTML5 parser only fails on reader errors, which a
		// strings.Reader never returns. Fall back to the raw text anyway.
		return collapse(markup)
	}

	doc.Find(nonContentSelector).Remove()

	var sb strings.Builder
	for _, n := range doc.Nodes {
		writeText(&sb, n)
	}
	return collapse(sb.String())
}

// writeText appends every text node under n, each followed by a space.
// Comments and doctype nodes are skipped.
func writeText(sb *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
}

// collapse folds whitespace runs into one space, trims and lowercases.
func collapse(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
