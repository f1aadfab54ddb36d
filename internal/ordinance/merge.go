// Package ordinance implements the content extractor: it walks a
// document's chunks, gates each one on legal-text, domain-mention, and
// utility-scale checks, and reconstructs the regulatory text that passed
// by splicing together the overlapping chunks around each hit.
package ordinance

// DefaultOverlapChars is the default window size used by
// MergeOverlappingTexts to detect overlap between consecutive chunks.
const DefaultOverlapChars = 300

// MergeOverlappingTexts joins a sequence of text chunks, splicing out any
// overlap between consecutive chunks rather than duplicating it. For each
// pair, it looks for the first n runes of the next chunk inside the last
// 2n runes of the text accumulated so far; if found, only the
// non-overlapping remainder of the next chunk is appended. Otherwise the
// two chunks are joined with a single newline.
func MergeOverlappingTexts(chunks []string, n int) string {
	if len(chunks) == 0 {
		return ""
	}
	if n <= 0 {
		n = DefaultOverlapChars
	}

	out := []rune(chunks[0])
	for _, next := range chunks[1:] {
		nextRunes := []rune(next)
		window := lastNRunes(out, 2*n)
		prefix := firstNRunes(nextRunes, n)
		idx := runeIndex(window, prefix)
		if idx == -1 {
			out = append(out, '\n')
			out = append(out, nextRunes...)
			continue
		}
		overlapEnd := len(window) - idx
		if overlapEnd > len(nextRunes) {
			overlapEnd = len(nextRunes)
		}
		out = append(out, nextRunes[overlapEnd:]...)
	}
	return string(out)
}

func lastNRunes(r []rune, n int) []rune {
	if len(r) <= n {
		return r
	}
	return r[len(r)-n:]
}

func firstNRunes(r []rune, n int) []rune {
	if len(r) <= n {
		return r
	}
	return r[:n]
}

// runeIndex finds the first occurrence of sub within s, both expressed as
// rune slices, returning -1 if sub is empty or not found.
func runeIndex(s, sub []rune) int {
	if len(sub) == 0 || len(sub) > len(s) {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if runesEqual(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
