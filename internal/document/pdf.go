package document

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	defaultPercentRawPagesToKeep = 25
	defaultMaxRawPages           = 18
	defaultNumEndPagesToKeep     = 2
)

var defaultHeaderLineIndices = []int{0, 1, 3, -3, -2, -1}

// PDFDocument is a document loaded from a PDF file. Its cleaned text has
// running headers/footers stripped and common PDF-extraction artifacts
// normalized; its raw pages retain a sample of the original page layout
// (the first percentRawPagesToKeep percent of pages, plus the last
// numEndPagesToKeep) for callers that need header/footer or trailing-page
// metadata the cleaned text throws away.
type PDFDocument struct {
	base

	percentRawPagesToKeep int
	maxRawPages           int
	numEndPagesToKeep     int
}

// PDFOption configures a PDFDocument's raw-page retention policy beyond
// the defaults NewPDFDocument uses.
type PDFOption func(*PDFDocument)

// WithRawPagePolicy overrides the percentage and cap of leading pages, and
// the count of trailing pages, kept as raw pages.
func WithRawPagePolicy(percentRawPagesToKeep, maxRawPages, numEndPagesToKeep int) PDFOption {
	return func(d *PDFDocument) {
		d.percentRawPagesToKeep = percentRawPagesToKeep
		d.maxRawPages = maxRawPages
		d.numEndPagesToKeep = numEndPagesToKeep
	}
}

// NewPDFDocument builds a PDFDocument from already-extracted page text.
func NewPDFDocument(source string, pages []string, attrs map[string]any, opts ...PDFOption) *PDFDocument {
	d := &PDFDocument{
		base:                  newBase(source, pages, attrs),
		percentRawPagesToKeep: defaultPercentRawPagesToKeep,
		maxRawPages:           defaultMaxRawPages,
		numEndPagesToKeep:     defaultNumEndPagesToKeep,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxRawPages > len(d.pages) {
		d.maxRawPages = len(d.pages)
	}
	d.text = d.cleanedText()
	d.rawPages = d.computeRawPages()
	return d
}

// LoadPDFFile opens a PDF file from disk, extracts per-page plain text
// with ledongthuc/pdf, and returns the resulting PDFDocument. Pages that
// fail to extract or carry no meaningful text are dropped; if every page
// is dropped this way, the PDF is most likely a scanned image with no
// text layer. When ocrBinaryPath is set, LoadPDFFile shells out to it as
// a fallback before giving up (see readPDFOCR); with ocrBinaryPath
// empty, that fallback is skipped and an error is returned immediately,
// matching the original's OCR-only-if-configured behavior.
func LoadPDFFile(path, ocrBinaryPath string, attrs map[string]any, opts ...PDFOption) (*PDFDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("document: open pdf %s: %w", path, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}

	pages = nonEmptyPages(pages)
	if len(pages) == 0 {
		if ocrBinaryPath == "" {
			return nil, fmt.Errorf("document: could not extract text from pdf %s", path)
		}
		ocrPages, err := readPDFOCR(ocrBinaryPath, path)
		if err != nil {
			return nil, fmt.Errorf("document: ocr fallback for pdf %s: %w", path, err)
		}
		pages = nonEmptyPages(ocrPages)
		if len(pages) == 0 {
			return nil, fmt.Errorf("document: could not extract text from pdf %s, even with ocr", path)
		}
		if attrs == nil {
			attrs = map[string]any{}
		}
		attrs["ocr"] = true
	}
	return NewPDFDocument(path, pages, attrs, opts...), nil
}

// readPDFOCR runs an external OCR binary (e.g. a tesseract wrapper script)
// against a scanned PDF, splitting its stdout on form-feed characters into
// one string per page. The binary is expected to take a PDF path as its
// sole argument and print extracted text to stdout, page breaks marked
// with "\f" — the same convention pdftotext and most OCR wrapper scripts
// built on it already use, so no module-specific wrapper is required.
func readPDFOCR(ocrBinaryPath, pdfPath string) ([]string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(ocrBinaryPath, pdfPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w: %s", ocrBinaryPath, err, stderr.String())
	}
	return strings.Split(stdout.String(), "\f"), nil
}

// numRawPagesToKeep is the number of leading pages kept as raw pages,
// clamped between 1 and maxRawPages.
func (d *PDFDocument) numRawPagesToKeep() int {
	numToKeep := int(float64(d.percentRawPagesToKeep) / 100 * float64(len(d.pages)))
	if numToKeep < 1 {
		numToKeep = 1
	}
	if numToKeep > d.maxRawPages {
		numToKeep = d.maxRawPages
	}
	return numToKeep
}

// lastPageIndex is the negative offset from the end of pages marking
// where the trailing raw-page sample should start, or 0 if the leading
// sample already reaches the end of the document.
func (d *PDFDocument) lastPageIndex() int {
	negExtra := d.numRawPagesToKeep() - len(d.pages)
	negLast := -d.numEndPagesToKeep
	if negExtra > negLast {
		negLast = negExtra
	}
	if negLast > 0 {
		negLast = 0
	}
	return negLast
}

func (d *PDFDocument) computeRawPages() []string {
	if len(d.pages) == 0 {
		return nil
	}
	n := d.numRawPagesToKeep()
	if n > len(d.pages) {
		n = len(d.pages)
	}
	raw := append([]string{}, d.pages[:n]...)

	lastIdx := d.lastPageIndex()
	if lastIdx != 0 {
		start := len(d.pages) + lastIdx
		if start < 0 {
			start = 0
		}
		raw = append(raw, d.pages[start:]...)
	}
	return raw
}

func (d *PDFDocument) cleanedText() string {
	if len(d.pages) == 0 {
		return ""
	}
	pages := cleanHeaders(d.pages, 0.6, 0.8, "\n", defaultHeaderLineIndices)
	text := combinePages(pages)
	text = replaceCommonPDFConversionChars(text)
	text = replaceMultiDotLines(text)
	text = removeEmptyLinesOrPageFooters(text)
	return text
}
