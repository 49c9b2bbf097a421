package web_fetch

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Extractor selects how markup is reduced to text.
type Extractor string

const (
	// TextExtractor keeps every visible text node of the document.
	TextExtractor Extractor = "text"
	// ReadabilityExtractor keeps the main article body and falls back to
	// TextExtractor when no article can be found.
	ReadabilityExtractor Extractor = "readability"
)

var skippedElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "template": {}, "svg": {}, "iframe": {}, "head": {},
}

// ExtractText converts an HTML document into plain text with whitespace runs
// collapsed to single spaces. An empty result means the page has no text.
func ExtractText(raw []byte, pageURL string, mode Extractor) (string, error) {
	if mode == ReadabilityExtractor {
		if text := readableText(raw, pageURL); text != "" {
			return text, nil
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var b strings.Builder
	for _, n := range doc.Nodes {
		collectText(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func readableText(raw []byte, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(raw), u)
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(article.TextContent), " ")
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if _, skip := skippedElements[n.Data]; skip {
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	if n.Type == html.ElementNode {
		// Separate adjacent blocks such as <td>a</td><td>b</td>.
		b.WriteByte(' ')
	}
}
