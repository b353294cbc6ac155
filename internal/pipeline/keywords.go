package pipeline

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/types"
)

const (
	defaultMaxKeywords = 10
	defaultWindowSize  = 4
	minKeywordLength   = 3
)

// stopwords filtered from keyword candidates.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "any": {}, "can": {}, "had": {}, "her": {},
	"was": {}, "one": {}, "our": {}, "out": {}, "has": {}, "have": {},
	"this": {}, "that": {}, "with": {}, "from": {}, "they": {}, "been": {},
	"were": {}, "their": {}, "there": {}, "which": {}, "will": {}, "would": {},
	"what": {}, "when": {}, "where": {}, "than": {}, "then": {}, "them": {},
	"these": {}, "those": {}, "into": {}, "over": {}, "under": {}, "about": {},
	"also": {}, "such": {}, "only": {}, "more": {}, "most": {}, "some": {},
	"other": {}, "being": {}, "its": {}, "his": {}, "she": {}, "him": {},
}

type token struct {
	word   string // lowercase
	offset int    // byte offset in the original content
}

// ExtractKeywords produces scored keyword terms with position offsets.
// Supported algorithms: "frequency" (normalized term frequency) and
// "cooccurrence" (degree-over-frequency within a sliding word window).
func ExtractKeywords(content string, cfg *types.KeywordConfig) ([]types.Keyword, error) {
	maxKeywords := defaultMaxKeywords
	algorithm := "frequency"
	window := defaultWindowSize
	if cfg != nil {
		if cfg.MaxKeywords > 0 {
			maxKeywords = cfg.MaxKeywords
		}
		if cfg.Algorithm != "" {
			algorithm = cfg.Algorithm
		}
		if cfg.WindowSize > 0 {
			window = cfg.WindowSize
		}
	}

	tokens := tokenize(content)
	if len(tokens) == 0 {
		return []types.Keyword{}, nil
	}

	var scores map[string]float64
	switch algorithm {
	case "frequency":
		scores = frequencyScores(tokens)
	case "cooccurrence":
		scores = cooccurrenceScores(tokens, window)
	default:
		return nil, errdef.Newf(errdef.KindValidation, "unknown keyword algorithm %q", algorithm)
	}

	positions := make(map[string][]int)
	for _, t := range tokens {
		if _, scored := scores[t.word]; scored {
			positions[t.word] = append(positions[t.word], t.offset)
		}
	}

	keywords := make([]types.Keyword, 0, len(scores))
	for term, score := range scores {
		keywords = append(keywords, types.Keyword{
			Term:      term,
			Score:     score,
			Positions: positions[term],
		})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Score != keywords[j].Score {
			return keywords[i].Score > keywords[j].Score
		}
		return keywords[i].Term < keywords[j].Term
	})
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords, nil
}

// tokenize splits content into candidate words, dropping stopwords, digits,
// and short tokens.
func tokenize(content string) []token {
	var tokens []token
	start := -1
	for i, r := range content {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = appendCandidate(tokens, content[start:i], start)
			start = -1
		}
	}
	if start >= 0 {
		tokens = appendCandidate(tokens, content[start:], start)
	}
	return tokens
}

func appendCandidate(tokens []token, raw string, offset int) []token {
	word := strings.ToLower(raw)
	if len(word) < minKeywordLength {
		return tokens
	}
	if _, stop := stopwords[word]; stop {
		return tokens
	}
	allDigits := true
	for _, r := range word {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return tokens
	}
	return append(tokens, token{word: word, offset: offset})
}

func frequencyScores(tokens []token) map[string]float64 {
	counts := make(map[string]int)
	maxCount := 0
	for _, t := range tokens {
		counts[t.word]++
		if counts[t.word] > maxCount {
			maxCount = counts[t.word]
		}
	}
	scores := make(map[string]float64, len(counts))
	for word, count := range counts {
		scores[word] = float64(count) / float64(maxCount)
	}
	return scores
}

// cooccurrenceScores ranks words by degree/frequency: words that co-occur
// with many distinct neighbors inside the window score higher than merely
// frequent ones.
func cooccurrenceScores(tokens []token, window int) map[string]float64 {
	freq := make(map[string]int)
	neighbors := make(map[string]map[string]struct{})
	for i, t := range tokens {
		freq[t.word]++
		if neighbors[t.word] == nil {
			neighbors[t.word] = make(map[string]struct{})
		}
		for j := i + 1; j < len(tokens) && j <= i+window; j++ {
			other := tokens[j].word
			if other == t.word {
				continue
			}
			neighbors[t.word][other] = struct{}{}
			if neighbors[other] == nil {
				neighbors[other] = make(map[string]struct{})
			}
			neighbors[other][t.word] = struct{}{}
		}
	}

	scores := make(map[string]float64, len(freq))
	maxScore := 0.0
	for word, f := range freq {
		degree := float64(len(neighbors[word]) + f)
		scores[word] = degree / float64(f)
		if scores[word] > maxScore {
			maxScore = scores[word]
		}
	}
	if maxScore > 0 {
		for word := range scores {
			scores[word] /= maxScore
		}
	}
	return scores
}
