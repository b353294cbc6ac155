package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kohlhaas/docintel/internal/types"
)

const (
	defaultMaxChars = 1000
	// tokenEstimateDivisor approximates tokens from rune count.
	tokenEstimateDivisor = 4
)

// SplitChunks windows content into spans according to the boundary policy.
//
//   - characters: hard windows of at most maxChars runes, with optional
//     overlap.
//   - sentence: boundaries fall only between sentences; a single sentence
//     longer than maxChars becomes its own oversized chunk rather than being
//     split.
//   - paragraph: same, respecting blank-line-separated paragraphs.
//
// Offsets are byte positions into the original content.
func SplitChunks(content string, cfg *types.ChunkingConfig) []types.Chunk {
	maxChars := defaultMaxChars
	overlap := 0
	policy := types.BoundaryCharacters
	if cfg != nil {
		if cfg.MaxChars > 0 {
			maxChars = cfg.MaxChars
		}
		if cfg.Overlap > 0 && cfg.Overlap < maxChars {
			overlap = cfg.Overlap
		}
		if cfg.Boundary != "" {
			policy = cfg.Boundary
		}
	}

	if content == "" {
		return []types.Chunk{}
	}

	switch policy {
	case types.BoundarySentence:
		return packUnits(content, splitSentences(content), maxChars)
	case types.BoundaryParagraph:
		return packUnits(content, splitParagraphs(content), maxChars)
	default:
		return hardChunks(content, maxChars, overlap)
	}
}

type unit struct {
	start, end int // byte offsets
}

func (u unit) text(content string) string { return content[u.start:u.end] }

func hardChunks(content string, maxChars, overlap int) []types.Chunk {
	runes := []rune(content)
	step := maxChars - overlap
	var chunks []types.Chunk

	byteOf := make([]int, len(runes)+1)
	b := 0
	for i, r := range runes {
		byteOf[i] = b
		b += utf8.RuneLen(r)
	}
	byteOf[len(runes)] = b

	for start := 0; start < len(runes); start += step {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, newChunk(content, byteOf[start], byteOf[end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// packUnits greedily accumulates whole units into chunks of at most maxChars
// runes. A unit never straddles two chunks even when it alone overshoots the
// target size.
func packUnits(content string, units []unit, maxChars int) []types.Chunk {
	var chunks []types.Chunk
	var curStart, curEnd, curRunes int
	open := false

	flush := func() {
		if open {
			chunks = append(chunks, newChunk(content, curStart, curEnd))
			open = false
		}
	}

	for _, u := range units {
		uRunes := utf8.RuneCountInString(u.text(content))
		if open && curRunes+uRunes > maxChars {
			flush()
		}
		if !open {
			curStart, curEnd, curRunes = u.start, u.end, uRunes
			open = true
		} else {
			curRunes += utf8.RuneCountInString(content[curEnd:u.end])
			curEnd = u.end
		}
		if curRunes >= maxChars {
			flush()
		}
	}
	flush()
	if chunks == nil {
		chunks = []types.Chunk{}
	}
	return chunks
}

func newChunk(content string, start, end int) types.Chunk {
	text := content[start:end]
	tokens := utf8.RuneCountInString(text) / tokenEstimateDivisor
	if tokens < 1 {
		tokens = 1
	}
	return types.Chunk{
		Content:    text,
		ByteStart:  start,
		ByteEnd:    end,
		TokenCount: tokens,
	}
}

// splitSentences scans for sentence terminators (., !, ?) followed by
// whitespace. Trailing closing quotes and brackets stay with their sentence.
func splitSentences(content string) []unit {
	var units []unit
	start := 0
	i := 0
	for i < len(content) {
		r, size := utf8.DecodeRuneInString(content[i:])
		if r == '.' || r == '!' || r == '?' {
			end := i + size
			// Absorb closing punctuation.
			for end < len(content) {
				nr, nsize := utf8.DecodeRuneInString(content[end:])
				if nr == '"' || nr == '\'' || nr == ')' || nr == ']' {
					end += nsize
					continue
				}
				break
			}
			if end >= len(content) || isSpaceAt(content, end) {
				units = append(units, unit{start, end})
				// Skip whitespace to the next sentence start.
				for end < len(content) && isSpaceAt(content, end) {
					_, s := utf8.DecodeRuneInString(content[end:])
					end += s
				}
				start = end
				i = end
				continue
			}
		}
		i += size
	}
	if start < len(content) && strings.TrimSpace(content[start:]) != "" {
		units = append(units, unit{start, len(content)})
	}
	return units
}

func isSpaceAt(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}

// splitParagraphs splits on blank lines.
func splitParagraphs(content string) []unit {
	var units []unit
	start := 0
	for start < len(content) {
		idx := strings.Index(content[start:], "\n\n")
		if idx < 0 {
			if strings.TrimSpace(content[start:]) != "" {
				units = append(units, unit{start, len(content)})
			}
			break
		}
		end := start + idx
		if strings.TrimSpace(content[start:end]) != "" {
			units = append(units, unit{start, end})
		}
		start = end
		for start < len(content) && (content[start] == '\n' || content[start] == '\r') {
			start++
		}
	}
	return units
}
