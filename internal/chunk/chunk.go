// Package chunk splits document text into overlapping, token-bounded
// chunks along paragraph boundaries, the unit of text an LLM caller
// ultimately sees.
package chunk

import (
	"strings"
	"unicode"
)

// Tokenizer counts tokens in a string the same way the LLM provider will,
// so chunk sizing matches the model's real context accounting.
type Tokenizer interface {
	CountTokens(text, model string) int
}

// Chunker splits Text into overlapping chunks bounded by TokensPerChunk,
// merging adjacent paragraphs greedily and then padding each resulting
// chunk with Overlap paragraphs of context on either side. Large
// paragraphs that alone exceed TokensPerChunk are never split further;
// they simply form their own (oversized) chunk.
type Chunker struct {
	Text            string
	Tag             string
	TokensPerChunk  int
	Overlap         int
	SplitOn         string
	Model           string
	Tokenizer       Tokenizer

	paragraphs []string
	parTokens  []int
	chunks     []string
}

// New builds a Chunker and immediately computes its chunks.
func New(text string, tokenizer Tokenizer, model string, tokensPerChunk, overlap int, splitOn string) *Chunker {
	if splitOn == "" {
		splitOn = "\n\n"
	}
	c := &Chunker{
		Text:           cleanParagraphBreaks(text),
		TokensPerChunk: tokensPerChunk,
		Overlap:        overlap,
		SplitOn:        splitOn,
		Model:          model,
		Tokenizer:      tokenizer,
	}
	c.paragraphs = goodParagraphs(strings.Split(c.Text, c.SplitOn))
	c.parTokens = make([]int, len(c.paragraphs))
	for i, p := range c.paragraphs {
		c.parTokens[i] = tokenizer.CountTokens(p, model)
	}
	c.chunks = c.chunkText()
	return c
}

// Chunks returns the computed text chunks, in order.
func (c *Chunker) Chunks() []string { return c.chunks }

// Paragraphs returns the paragraphs the chunker split Text into, after
// dropping ones that fail the "is good paragraph" heuristic.
func (c *Chunker) Paragraphs() []string { return c.paragraphs }

// cleanParagraphBreaks collapses "\n " runs into "\n" so that paragraphs
// separated by a blank line with leading whitespace are still detected.
func cleanParagraphBreaks(text string) string {
	for {
		cleaned := strings.ReplaceAll(text, "\n ", "\n")
		if len(cleaned) == len(text) {
			return cleaned
		}
		text = cleaned
	}
}

// goodParagraphs drops paragraphs that are dot-leader table-of-contents
// lines or pure numeric page markers.
func goodParagraphs(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if isGoodParagraph(p) {
			out = append(out, p)
		}
	}
	return out
}

func isGoodParagraph(p string) bool {
	if strings.Contains(p, ".....") {
		return false
	}
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return true
	}
	return !isNumeric(trimmed)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// chunkText runs the fixed-point paragraph merge, pads with overlap, and
// joins paragraph groups back into text chunks.
func (c *Chunker) chunkText() []string {
	groups := make([][]int, len(c.paragraphs))
	for i := range groups {
		groups[i] = []int{i}
	}

	for {
		merged := c.mergeChunks(groups)
		if sameGroups(merged, groups) {
			break
		}
		groups = merged
	}

	groups = c.addOverlap(groups)

	textChunks := make([]string, len(groups))
	for i, group := range groups {
		pars := make([]string, len(group))
		for j, idx := range group {
			pars[j] = c.paragraphs[idx]
		}
		chunkText := strings.Join(pars, c.SplitOn)
		if c.Tag != "" {
			chunkText = c.Tag + "\n\n" + chunkText
		}
		textChunks[i] = chunkText
	}
	return textChunks
}

// mergeChunks merges adjacent paragraph groups whose combined token count
// stays under TokensPerChunk, one greedy left-to-right pass.
func (c *Chunker) mergeChunks(groupsInput [][]int) [][]int {
	groups := make([][]int, len(groupsInput))
	copy(groups, groupsInput)

	for i := 0; i < len(groups)-1; i++ {
		g0, g1 := groups[i], groups[i+1]
		if g0 == nil || g1 == nil {
			continue
		}
		if c.tokenCount(g0)+c.tokenCount(g1) < c.TokensPerChunk {
			groups[i] = append(append([]int{}, g0...), g1...)
			groups[i+1] = nil
		}
	}

	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		if g != nil {
			out = append(out, g)
		}
	}
	return out
}

func (c *Chunker) tokenCount(group []int) int {
	total := 0
	for _, idx := range group {
		total += c.parTokens[idx]
	}
	return total
}

// addOverlap pads each group with Overlap paragraphs from its neighbors,
// ignoring the token cap entirely.
func (c *Chunker) addOverlap(groupsInput [][]int) [][]int {
	if len(groupsInput) == 1 || c.Overlap == 0 {
		return groupsInput
	}

	out := make([][]int, len(groupsInput))
	for i, g1 := range groupsInput {
		switch {
		case i == 0:
			g2 := groupsInput[i+1]
			out[i] = append(append([]int{}, g1...), takeFront(g2, c.Overlap)...)
		case i == len(groupsInput)-1:
			g0 := groupsInput[i-1]
			out[i] = append(takeBack(g0, c.Overlap), g1...)
		default:
			g0 := groupsInput[i-1]
			g2 := groupsInput[i+1]
			merged := append(takeBack(g0, c.Overlap), g1...)
			out[i] = append(merged, takeFront(g2, c.Overlap)...)
		}
	}
	return out
}

func takeFront(g []int, n int) []int {
	if n > len(g) {
		n = len(g)
	}
	return append([]int{}, g[:n]...)
}

func takeBack(g []int, n int) []int {
	if n > len(g) {
		n = len(g)
	}
	return append([]int{}, g[len(g)-n:]...)
}

func sameGroups(a, b [][]int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
