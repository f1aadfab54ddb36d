package document

import (
	"regexp"
	"strings"
)

// cleanHeaders strips lines that repeat, near-verbatim, at the same split
// position on most pages — running headers and footers left over from PDF
// page layout that would otherwise pollute every chunk of cleaned text.
// iheaders gives the line indices (after splitting each page on splitOn,
// negative counting from the end) to examine as header/footer candidates.
func cleanHeaders(pages []string, charThresh, pageThresh float64, splitOn string, iheaders []int) []string {
	if len(pages) < 2 {
		return pages
	}

	split := make([][]string, len(pages))
	for i, p := range pages {
		split[i] = strings.Split(p, splitOn)
	}

	toDrop := make([]map[int]bool, len(pages))
	for i := range toDrop {
		toDrop[i] = map[int]bool{}
	}

	for _, ih := range iheaders {
		lineAt := make([]string, len(pages))
		absIdx := make([]int, len(pages))
		for i, ls := range split {
			idx := resolveLineIndex(ih, len(ls))
			absIdx[i] = idx
			if idx >= 0 {
				lineAt[i] = strings.TrimSpace(ls[idx])
			}
		}
		if !headerRepeats(lineAt, charThresh, pageThresh) {
			continue
		}
		for i, idx := range absIdx {
			if idx >= 0 {
				toDrop[i][idx] = true
			}
		}
	}

	out := make([]string, len(pages))
	for i, ls := range split {
		kept := make([]string, 0, len(ls))
		for j, line := range ls {
			if !toDrop[i][j] {
				kept = append(kept, line)
			}
		}
		out[i] = strings.Join(kept, splitOn)
	}
	return out
}

// resolveLineIndex turns a (possibly negative) header-line index into an
// absolute index into a page with n split lines, or -1 if out of range.
func resolveLineIndex(i, n int) int {
	if n == 0 {
		return -1
	}
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return -1
	}
	return i
}

// headerRepeats reports whether enough of the non-empty lines in lineAt
// are near-identical (by similarity) to count as a repeated running
// header or footer rather than coincidentally similar page content.
func headerRepeats(lineAt []string, charThresh, pageThresh float64) bool {
	nonEmpty := 0
	for _, l := range lineAt {
		if l != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return false
	}

	counts := map[string]int{}
	order := make([]string, 0, len(lineAt))
	for _, l := range lineAt {
		if l == "" {
			continue
		}
		matched := ""
		for _, seen := range order {
			if similarity(seen, l) >= charThresh {
				matched = seen
				break
			}
		}
		if matched == "" {
			counts[l] = 1
			order = append(order, l)
		} else {
			counts[matched]++
		}
	}

	best := 0
	for _, c := range counts {
		if c > best {
			best = c
		}
	}
	return float64(best) >= pageThresh*float64(len(lineAt))
}

// similarity is the fraction of characters two strings share at the same
// position, out of the longer string's length.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	same := 0
	for i := 0; i < n; i++ {
		if ra[i] == rb[i] {
			same++
		}
	}
	return float64(same) / float64(longest)
}

var pdfConversionReplacements = [][2]string{
	{"ﬁ", "fi"},
	{"ﬂ", "fl"},
	{"’", "'"},
	{"‘", "'"},
	{"“", "\""},
	{"”", "\""},
	{"–", "-"},
	{"—", "-"},
	{" ", " "},
}

// replaceCommonPDFConversionChars normalizes ligatures, curly quotes, and
// non-breaking spaces that common PDF text extractors leave behind.
func replaceCommonPDFConversionChars(text string) string {
	for _, pair := range pdfConversionReplacements {
		text = strings.ReplaceAll(text, pair[0], pair[1])
	}
	return text
}

var multiDotRe = regexp.MustCompile(`\.{4,}`)

// replaceMultiDotLines collapses table-of-contents dot leaders ("Section
// 1.....5") into a single space so they don't masquerade as sentence
// punctuation downstream.
func replaceMultiDotLines(text string) string {
	return multiDotRe.ReplaceAllString(text, " ")
}

var pageFooterRe = regexp.MustCompile(`^(page\s+)?\d+(\s*(of|/)\s*\d+)?$`)

// removeEmptyLinesOrPageFooters drops blank lines and lines that are
// nothing but a page number, such as "12" or "Page 3 of 40".
func removeEmptyLinesOrPageFooters(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			continue
		}
		if pageFooterRe.MatchString(strings.ToLower(trimmed)) {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
