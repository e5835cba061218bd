// Package mention implements parsing of @mention references out of free-text
// note content, plus snippet extraction around a mention's position. Both are
// pure functions with no storage dependencies so callers (UI renderers, the
// link reconciler) can use them directly.
package mention

import (
	"regexp"
	"strings"

	"github.com/canvaslab/mention-core/pkg/canvas"
)

// mentionPattern recognizes the three mention syntaxes. Alternation is
// leftmost-first, so the more specific forms win at each scan position:
//
//	@{<id>}      explicit id reference, body trimmed
//	@[<title>]   bracketed multi-word title, body trimmed
//	@<word>      contiguous run of word characters and hyphens
//
// Each form consumes a disjoint token, so overlapping matches are impossible
// in a single pass.
var mentionPattern = regexp.MustCompile(`@\{([^{}]*)\}|@\[([^\[\]]*)\]|@([\w-]+)`)

// ParseWithPositions scans text and returns every mention occurrence in text
// order, duplicates included. Callers that need to locate a specific
// occurrence (e.g. to anchor a snippet) use this variant.
func ParseWithPositions(text string) []canvas.Mention {
	matches := mentionPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	mentions := make([]canvas.Mention, 0, len(matches))
	for _, m := range matches {
		// Group 1: id body, group 2: bracketed title, group 3: bare word.
		switch {
		case m[2] >= 0:
			id := strings.TrimSpace(text[m[2]:m[3]])
			if id == "" {
				continue
			}
			mentions = append(mentions, canvas.Mention{
				Kind:  canvas.MentionByID,
				Value: id,
				Start: m[0],
				End:   m[1],
			})
		case m[4] >= 0:
			title := strings.TrimSpace(text[m[4]:m[5]])
			if title == "" {
				continue
			}
			mentions = append(mentions, canvas.Mention{
				Kind:  canvas.MentionByTitle,
				Value: title,
				Start: m[0],
				End:   m[1],
			})
		case m[6] >= 0:
			mentions = append(mentions, canvas.Mention{
				Kind:  canvas.MentionByTitle,
				Value: text[m[6]:m[7]],
				Start: m[0],
				End:   m[1],
			})
		}
	}

	return mentions
}

// Parse scans text and returns the deduplicated mention sequence used for
// set-based diffing. When the same target is mentioned more than once, the
// first occurrence survives; equality is exact for id mentions and
// case-insensitive for title mentions.
func Parse(text string) []canvas.Mention {
	return Dedupe(ParseWithPositions(text))
}

// Dedupe reduces a positioned mention sequence to its first occurrence per
// distinct dedup key, preserving order. The surviving mention keeps the
// position of its first occurrence.
func Dedupe(mentions []canvas.Mention) []canvas.Mention {
	if len(mentions) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(mentions))
	out := make([]canvas.Mention, 0, len(mentions))
	for _, m := range mentions {
		key := m.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}

	return out
}
