// Package contracts names the external collaborator boundaries a
// process_location run depends on, independent of which concrete
// implementation backs them. Pulling these out of internal/pipeline keeps
// the pipeline's own code expressed purely in terms of what it needs from
// the world, matching the original's SearchEngine/FileLoader/TextSplitter/
// Tokenizer protocol split.
package contracts

import (
	"context"

	"github.com/NREL/elm-sub000/internal/document"
	"github.com/NREL/elm-sub000/internal/search"
)

// SearchEngine issues one query against a search backend and returns a
// bounded list of hits. internal/pipeline fans this out across its fixed
// query templates and merges the per-query result lists itself; the
// per-query call is the unit this contract describes.
type SearchEngine interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
}

// FileLoader fetches a single URL and returns it as a document.Document,
// choosing the PDF or HTML construction path from the response's content
// type. A URL that cannot be retrieved at all returns an error; a URL that
// loads but carries no meaningful text returns a document whose Empty()
// is true rather than an error, so the pipeline can drop it silently like
// every other disqualified candidate.
type FileLoader interface {
	Load(ctx context.Context, url string) (document.Document, error)
}

// TextSplitter breaks long text into smaller pieces. It is the same
// contract internal/document's HTMLDocument accepts to build its raw
// pages from fetched HTML.
type TextSplitter = document.TextSplitter

// Tokenizer counts tokens in a string the way a target model actually
// will, the same contract internal/chunk and internal/llm depend on for
// chunk sizing and rate-limit accounting.
type Tokenizer interface {
	CountTokens(text, model string) int
}
