package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/NREL/elm-sub000/internal/document"
	"github.com/NREL/elm-sub000/internal/fetch"
	"github.com/NREL/elm-sub000/internal/robots"
)

// Loader fetches a URL and turns it into a document.Document, honoring
// robots.txt and branching between HTML and PDF construction on the
// response's content type. It is the concrete contracts.FileLoader the
// pipeline's load step depends on.
type Loader struct {
	Fetch         *fetch.Client
	Robots        *robots.Manager // optional; nil skips the robots check
	UserAgent     string
	TempDir       string
	OCRBinaryPath string                // optional; enables PDF OCR fallback, see document.LoadPDFFile
	TextSplitter  document.TextSplitter // optional, forwarded to NewHTMLDocument
}

// Load fetches rawURL and returns the resulting document, or an error if
// it could not be retrieved at all (disallowed by robots.txt, transport
// failure, or an unsupported content type). A page that loads but carries
// no meaningful text is still returned rather than treated as an error;
// the pipeline's Document.Empty() check drops it like any other
// disqualified candidate.
func (l *Loader) Load(ctx context.Context, rawURL string) (document.Document, error) {
	if l.Robots != nil {
		allowed, err := l.checkRobots(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("pipeline: robots check for %s: %w", rawURL, err)
		}
		if !allowed {
			return nil, fmt.Errorf("pipeline: disallowed by robots.txt: %s", rawURL)
		}
	}

	body, contentType, err := l.Fetch.Get(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetch %s: %w", rawURL, err)
	}

	attrs := map[string]any{"content_type": contentType}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "application/pdf") {
		return l.loadPDF(rawURL, body, attrs)
	}
	return document.NewHTMLDocument(rawURL, []string{string(body)}, attrs, l.TextSplitter), nil
}

// loadPDF writes body to a temporary file (document.LoadPDFFile needs a
// path, not an in-memory reader) and wraps the resulting PDFDocument so
// its Source() reports rawURL rather than the throwaway temp path.
func (l *Loader) loadPDF(rawURL string, body []byte, attrs map[string]any) (document.Document, error) {
	dir := l.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "elmords-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("pipeline: create temp pdf file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(body); err != nil {
		f.Close()
		return nil, fmt.Errorf("pipeline: write temp pdf file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("pipeline: close temp pdf file: %w", err)
	}

	doc, err := document.LoadPDFFile(path, l.OCRBinaryPath, attrs)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load pdf %s: %w", rawURL, err)
	}
	return &sourcedDocument{Document: doc, source: rawURL}, nil
}

// checkRobots fetches rawURL's host-level robots.txt and reports whether
// l.UserAgent (or "*" if unset) may fetch rawURL's path.
func (l *Loader) checkRobots(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	rules, _, err := l.Robots.Get(ctx, robotsURL)
	if err != nil {
		return false, err
	}
	ua := l.UserAgent
	if ua == "" {
		ua = "*"
	}
	return rules.IsAllowed(ua, u.Path), nil
}

// sourcedDocument overrides Source() on an embedded document.Document, so
// a PDFDocument built from a temp file reports the URL it was fetched
// from rather than the temp path it happened to be parsed from.
type sourcedDocument struct {
	document.Document
	source string
}

func (s *sourcedDocument) Source() string { return s.source }
