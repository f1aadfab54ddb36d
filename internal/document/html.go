package document

import (
	"strings"

	"github.com/NREL/elm-sub000/internal/extract"
)

// TextSplitter splits long text into smaller chunks. HTMLDocument accepts
// one to build raw pages from the combined page text instead of using the
// original per-fetch page boundaries, mirroring how a langchain-style
// splitter was accepted upstream.
type TextSplitter interface {
	SplitText(text string) []string
}

// HTMLDocument is a document loaded from fetched HTML pages, with markup
// stripped down to reading-order text.
type HTMLDocument struct {
	base

	textSplitter TextSplitter
}

// NewHTMLDocument builds an HTMLDocument from HTML page fragments.
// splitter may be nil, in which case raw pages are just the original page
// fragments rather than splitter-produced chunks.
func NewHTMLDocument(source string, pages []string, attrs map[string]any, splitter TextSplitter) *HTMLDocument {
	d := &HTMLDocument{
		base:         newBase(source, pages, attrs),
		textSplitter: splitter,
	}
	d.text = d.cleanedText()
	d.rawPages = d.computeRawPages()
	return d
}

func (d *HTMLDocument) cleanedText() string {
	if len(d.pages) == 0 {
		return ""
	}
	combined := combinePages(d.pages)
	return extract.FromHTML([]byte(combined)).Text
}

func (d *HTMLDocument) computeRawPages() []string {
	if d.textSplitter == nil {
		return append([]string{}, d.pages...)
	}
	return d.textSplitter.SplitText(strings.Join(d.pages, "\n\n"))
}
