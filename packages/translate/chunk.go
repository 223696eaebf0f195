package translate

import "strings"

// SplitChunks cuts content into pieces of at most max runes, preferring
// paragraph breaks, then line breaks, then plain whitespace. Splits never
// land inside an HTML tag; a window with no safe boundary extends to the
// next one past the limit rather than cutting mid-tag.
func SplitChunks(content string, max int) []string {
	runes := []rune(content)
	if max <= 0 || len(runes) <= max {
		return []string{content}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= max {
			chunks = append(chunks, string(runes))
			break
		}

		cut := findBoundary(runes, max)
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), " \n\t"))
		runes = runes[cut:]
		for len(runes) > 0 && (runes[0] == ' ' || runes[0] == '\n' || runes[0] == '\t') {
			runes = runes[1:]
		}
	}
	return chunks
}

// findBoundary picks the best split index at or before max, falling forward
// past max only when nothing safe exists behind it.
func findBoundary(runes []rune, max int) int {
	best := -1
	bestRank := 0 // 3 = paragraph, 2 = newline, 1 = space

	for i := 1; i < len(runes) && i <= max; i++ {
		if insideTag(runes, i) {
			continue
		}
		switch {
		case runes[i] == '\n' && runes[i-1] == '\n':
			if bestRank <= 3 {
				best, bestRank = i, 3
			}
		case runes[i] == '\n':
			if bestRank <= 2 {
				best, bestRank = i, 2
			}
		case runes[i] == ' ':
			if bestRank <= 1 {
				best, bestRank = i, 1
			}
		}
	}
	if best > 0 {
		return best
	}

	// No safe boundary in the window: walk forward to the first one.
	for i := max + 1; i < len(runes); i++ {
		if insideTag(runes, i) {
			continue
		}
		if runes[i] == '\n' || runes[i] == ' ' {
			return i
		}
	}
	return len(runes)
}

// insideTag reports whether position i sits between an unclosed '<' and its
// '>'.
func insideTag(runes []rune, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch runes[j] {
		case '<':
			return true
		case '>':
			return false
		}
	}
	return false
}
