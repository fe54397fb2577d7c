// Package processor parses fetched HTML into the pieces the quality gate and
// the link extractor work from: visible text, anchor count and raw hrefs.
package processor

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	// ErrEmptyBody is returned for a zero-length body.
	ErrEmptyBody = errors.New("page body empty")
	// ErrNotMarkup is returned when the body sniffs as binary content.
	ErrNotMarkup = errors.New("page body is not markup")
)

// Document is the parsed view of one page.
type Document struct {
	Title string
	// Text holds every visible text node, whitespace collapsed to single spaces.
	Text string
	// Anchors counts every <a> element, with or without an href.
	Anchors int
	// Hrefs lists raw href values in document order.
	Hrefs []string
}

// TextLength is the length of Text in runes.
func (d *Document) TextLength() int {
	if d == nil {
		return 0
	}
	return utf8.RuneCountInString(d.Text)
}

// LinkRatio is anchors per character of visible text. An empty text counts
// as one character.
func (d *Document) LinkRatio() float64 {
	if d == nil {
		return 0
	}
	n := d.TextLength()
	if n < 1 {
		n = 1
	}
	return float64(d.Anchors) / float64(n)
}

var invisibleTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
}

// blockLevelTags separate their content from neighbouring text.
var blockLevelTags = map[string]struct{}{
	"html":       {},
	"head":       {},
	"body":       {},
	"title":      {},
	"br":         {},
	"hr":         {},
	"p":          {},
	"div":        {},
	"main":       {},
	"nav":        {},
	"aside":      {},
	"section":    {},
	"article":    {},
	"header":     {},
	"footer":     {},
	"blockquote": {},
	"pre":        {},
	"h1":         {},
	"h2":         {},
	"h3":         {},
	"h4":         {},
	"h5":         {},
	"h6":         {},
	"ul":         {},
	"ol":         {},
	"li":         {},
	"dl":         {},
	"dt":         {},
	"dd":         {},
	"table":      {},
	"tr":         {},
	"td":         {},
	"th":         {},
	"option":     {},
	"figure":     {},
	"figcaption": {},
}

// Parse builds a Document from an HTML body.
func Parse(body []byte) (*Document, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if !sniffsAsMarkup(body) {
		return nil, ErrNotMarkup
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := &Document{
		Title: NormalizeWhitespace(doc.Find("title").First().Text()),
	}
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		out.Anchors++
		if href, ok := s.Attr("href"); ok {
			out.Hrefs = append(out.Hrefs, href)
		}
	})

	acc := &textAccumulator{}
	for _, node := range doc.Nodes {
		accumulateText(node, acc)
	}
	out.Text = acc.String()
	return out, nil
}

// NormalizeWhitespace collapses runs of whitespace to single spaces and trims
// both ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sniffsAsMarkup(body []byte) bool {
	ct := http.DetectContentType(body)
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "xml")
}

type textAccumulator struct {
	builder      strings.Builder
	pendingSpace bool
}

func (t *textAccumulator) String() string {
	return t.builder.String()
}

func (t *textAccumulator) boundary() {
	if t.builder.Len() > 0 {
		t.pendingSpace = true
	}
}

func (t *textAccumulator) appendText(raw string) {
	if raw == "" {
		return
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		t.boundary()
		return
	}
	first, _ := utf8.DecodeRuneInString(raw)
	last, _ := utf8.DecodeLastRuneInString(raw)
	if t.builder.Len() > 0 && (t.pendingSpace || unicode.IsSpace(first)) {
		t.builder.WriteByte(' ')
	}
	t.builder.WriteString(strings.Join(fields, " "))
	t.pendingSpace = unicode.IsSpace(last)
}

func accumulateText(node *html.Node, acc *textAccumulator) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		acc.appendText(node.Data)
	case html.DocumentNode:
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			accumulateText(child, acc)
		}
	case html.ElementNode:
		tag := strings.ToLower(node.Data)
		if _, skip := invisibleTags[tag]; skip {
			return
		}
		_, block := blockLevelTags[tag]
		if block {
			acc.boundary()
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			accumulateText(child, acc)
		}
		if block {
			acc.boundary()
		}
	}
}
