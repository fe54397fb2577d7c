package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCollectsVisibleText(t *testing.T) {
	body := `<html><head><title>T</title><style>.a{color:red}</style></head>` +
		`<body><p>Hello   <b>big</b> world</p><script>var x = 1;</script>` +
		`<noscript>enable js</noscript><a href="/a">A</a> <a>no</a></body></html>`

	doc, err := Parse([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "T", doc.Title)
	assert.Equal(t, "T Hello big world A no", doc.Text)
	assert.Equal(t, 2, doc.Anchors)
	assert.Equal(t, []string{"/a"}, doc.Hrefs)
}

func TestParseSeparatesBlocks(t *testing.T) {
	doc, err := Parse([]byte(`<p>a</p><p>b</p><ul><li>c</li><li>d</li></ul>`))
	require.NoError(t, err)
	assert.Equal(t, "a b c d", doc.Text)
}

func TestParseKeepsInlineRunsTogether(t *testing.T) {
	doc, err := Parse([]byte(`<p>foo<b>bar</b></p>`))
	require.NoError(t, err)
	assert.Equal(t, "foobar", doc.Text)
}

func TestParseKeepsHrefOrderAndEmptyHrefs(t *testing.T) {
	doc, err := Parse([]byte(`<a href="/1">1</a><a href="">e</a><a href="https://x.edu/2">2</a>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"/1", "", "https://x.edu/2"}, doc.Hrefs)
	assert.Equal(t, 3, doc.Anchors)
}

func TestParseRejectsEmptyAndBinary(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = Parse([]byte{0x00, 0x01, 0x02, 0xff, 0xfe})
	assert.ErrorIs(t, err, ErrNotMarkup)

	_, err = Parse([]byte("%PDF-1.7\n..."))
	assert.ErrorIs(t, err, ErrNotMarkup)
}

func TestTextLengthCountsRunes(t *testing.T) {
	doc, err := Parse([]byte(`<p>héllo wörld</p>`))
	require.NoError(t, err)
	assert.Equal(t, 11, doc.TextLength())
}

func TestLinkRatio(t *testing.T) {
	doc, err := Parse([]byte(`<a href="/x"></a><a href="/y"></a>`))
	require.NoError(t, err)
	assert.Equal(t, "", doc.Text)
	assert.Equal(t, 2.0, doc.LinkRatio())

	text := strings.Repeat("w", 40)
	doc, err = Parse([]byte(`<p>` + text + `</p><a href="/z">` + strings.Repeat("v", 10) + `</a>`))
	require.NoError(t, err)
	assert.InDelta(t, 1.0/51.0, doc.LinkRatio(), 1e-9)
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a\n\tb   c \r\n"))
	assert.Equal(t, "", NormalizeWhitespace(" \n "))
}
