package mention

import "strings"

// Ellipsis marks a snippet window that was cut short of the content boundary.
const Ellipsis = "…"

type wordSpan struct {
	start int
	end   int
}

// ExtractSnippet returns a bounded context string around the span
// [start, end) of content: the word(s) overlapping the span plus up to
// wordsAround whitespace-delimited words on each side, joined with single
// spaces. An ellipsis marker is prepended/appended when the window does not
// reach the start/end of content. Degenerate inputs never panic; the best
// available substring is returned.
func ExtractSnippet(content string, start, end, wordsAround int) string {
	words := splitWords(content)
	if len(words) == 0 {
		return ""
	}

	if start < 0 {
		start = 0
	}
	if end > len(content) {
		end = len(content)
	}
	if end < start {
		end = start
	}

	// Locate the first and last words overlapping [start, end). A span that
	// falls entirely in whitespace or past the end anchors on the nearest
	// word instead.
	first, last := -1, -1
	for i, w := range words {
		if w.start < end && w.end > start {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		first = len(words) - 1
		for i, w := range words {
			if w.start >= start {
				first = i
				break
			}
		}
		last = first
	}

	if wordsAround < 0 {
		wordsAround = 0
	}
	from := first - wordsAround
	if from < 0 {
		from = 0
	}
	to := last + wordsAround
	if to > len(words)-1 {
		to = len(words) - 1
	}

	parts := make([]string, 0, to-from+1)
	for _, w := range words[from : to+1] {
		parts = append(parts, content[w.start:w.end])
	}

	snippet := strings.Join(parts, " ")
	if from > 0 {
		snippet = Ellipsis + snippet
	}
	if to < len(words)-1 {
		snippet = snippet + Ellipsis
	}

	return snippet
}

// splitWords returns the whitespace-delimited words of content with their
// byte offsets.
func splitWords(content string) []wordSpan {
	var words []wordSpan
	start := -1
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			if start >= 0 {
				words = append(words, wordSpan{start: start, end: i})
				start = -1
			}
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if start >= 0 {
		words = append(words, wordSpan{start: start, end: len(content)})
	}
	return words
}
