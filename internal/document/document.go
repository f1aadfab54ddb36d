// Package document implements the cleaned-text and raw-page abstraction
// that sits between a fetched file and the rest of the extraction
// pipeline: every document kind exposes the same small surface regardless
// of whether it started life as a PDF or an HTML page.
package document

import (
	"strings"
	"unicode"
)

// Document is the minimal surface extraction and validation code needs
// from a fetched file: its cleaned text, a bounded set of raw pages for
// header/footer or metadata scavenging, and the URL or path it came from.
type Document interface {
	Source() string
	Text() string
	RawPages() []string
	Empty() bool
	Attrs() map[string]any
}

// base holds the fields and derived text shared by every concrete document
// kind. Concrete types embed it and populate text/rawPages once in their
// constructor, matching the original's cached-property semantics without
// needing a sync.Once for values that never change after construction.
type base struct {
	source   string
	pages    []string
	attrs    map[string]any
	text     string
	rawPages []string
}

func newBase(source string, pages []string, attrs map[string]any) base {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return base{
		source: source,
		pages:  removeBlankPages(pages),
		attrs:  attrs,
	}
}

func (b *base) Source() string        { return b.source }
func (b *base) Text() string          { return b.text }
func (b *base) RawPages() []string    { return b.rawPages }
func (b *base) Attrs() map[string]any { return b.attrs }

// Empty reports whether the cleaned text contains no line with more than
// 10 characters and at least one letter.
func (b *base) Empty() bool {
	for _, line := range strings.Split(b.text, "\n") {
		if qualifiesNonEmpty(line) {
			return false
		}
	}
	return true
}

// removeBlankPages drops pages that contain nothing but whitespace.
func removeBlankPages(pages []string) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// nonEmptyPages keeps only pages with more than 10 characters and at least
// one letter, the heuristic used to reject near-blank OCR/scan artifacts.
func nonEmptyPages(pages []string) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		if qualifiesNonEmpty(p) {
			out = append(out, p)
		}
	}
	return out
}

func qualifiesNonEmpty(s string) bool {
	if len(s) <= 10 {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func combinePages(pages []string) string {
	return strings.Join(pages, "\n")
}
