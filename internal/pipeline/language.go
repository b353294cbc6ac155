package pipeline

import (
	"sort"
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/kohlhaas/docintel/internal/types"
)

const (
	defaultLanguageTopK          = 3
	defaultLanguageMinConfidence = 0.5

	// languageBlockSize bounds the text fed to one detection pass; long
	// documents are sampled block-by-block so secondary languages in mixed
	// documents are still seen.
	languageBlockSize = 2048
	maxLanguageBlocks = 32
)

// DetectLanguages returns up to topK ISO 639-1 codes ordered by prevalence.
// Detections below minConfidence are discarded; an empty slice means nothing
// met the gate.
func DetectLanguages(content string, cfg *types.LanguageDetectionConfig) []string {
	topK := defaultLanguageTopK
	minConfidence := defaultLanguageMinConfidence
	if cfg != nil {
		if cfg.TopK > 0 {
			topK = cfg.TopK
		}
		if cfg.MinConfidence > 0 {
			minConfidence = cfg.MinConfidence
		}
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	counts := make(map[string]int)
	for _, block := range languageBlocks(content) {
		info := whatlanggo.Detect(block)
		if info.Confidence < minConfidence {
			continue
		}
		code := info.Lang.Iso6391()
		if code == "" {
			continue
		}
		counts[code]++
	}
	if len(counts) == 0 {
		return nil
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})
	if len(codes) > topK {
		codes = codes[:topK]
	}
	return codes
}

// languageBlocks samples the content in fixed-size blocks on rune
// boundaries.
func languageBlocks(content string) []string {
	runes := []rune(content)
	if len(runes) <= languageBlockSize {
		return []string{content}
	}
	var blocks []string
	for start := 0; start < len(runes) && len(blocks) < maxLanguageBlocks; start += languageBlockSize {
		end := start + languageBlockSize
		if end > len(runes) {
			end = len(runes)
		}
		blocks = append(blocks, string(runes[start:end]))
	}
	return blocks
}
