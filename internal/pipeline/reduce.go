package pipeline

import (
	"strings"

	"github.com/kohlhaas/docintel/internal/types"
)

// ReduceTokens shrinks content according to the reduction mode. Every mode is
// idempotent: reducing already-reduced content returns it unchanged.
//
//   - light: collapse runs of spaces and tabs, strip trailing whitespace,
//     collapse runs of blank lines to one.
//   - moderate: light, plus consecutive duplicate lines are removed.
//   - aggressive: moderate, plus stopwords are dropped from each line.
func ReduceTokens(content string, cfg *types.TokenReductionConfig) string {
	mode := types.ReduceLight
	if cfg != nil && cfg.Mode != "" {
		mode = cfg.Mode
	}

	out := normalizeWhitespace(content)
	if mode == types.ReduceLight {
		return out
	}

	out = dedupeConsecutiveLines(out)
	if mode == types.ReduceModerate {
		return out
	}

	// Dropping stopwords can make previously distinct lines equal, so dedupe
	// again to keep the transform idempotent.
	return dedupeConsecutiveLines(normalizeWhitespace(dropStopwords(out)))
}

func normalizeWhitespace(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		collapsed := strings.Join(strings.Fields(line), " ")
		if collapsed == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, collapsed)
	}
	// No trailing blank line.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func dedupeConsecutiveLines(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 && line != "" && line == lines[i-1] {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func dropStopwords(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		words := strings.Fields(line)
		kept := words[:0]
		for _, w := range words {
			if _, stop := stopwords[strings.ToLower(strings.Trim(w, ".,;:!?\"'()"))]; stop {
				continue
			}
			kept = append(kept, w)
		}
		lines[i] = strings.Join(kept, " ")
	}
	return strings.Join(lines, "\n")
}
