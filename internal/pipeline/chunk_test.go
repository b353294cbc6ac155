package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohlhaas/docintel/internal/types"
)

func TestHardChunksRespectMaxCharsAndOverlap(t *testing.T) {
	content := strings.Repeat("a", 25)
	chunks := SplitChunks(content, &types.ChunkingConfig{
		MaxChars: 10,
		Overlap:  3,
		Boundary: types.BoundaryCharacters,
	})

	require.Len(t, chunks, 4)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 10)
		assert.Equal(t, content[c.ByteStart:c.ByteEnd], c.Content)
		assert.GreaterOrEqual(t, c.TokenCount, 1)
	}
	// Consecutive chunks share the configured overlap.
	assert.Equal(t, chunks[0].ByteEnd-3, chunks[1].ByteStart)
}

func TestHardChunksMultibyteOffsetsAreByteAccurate(t *testing.T) {
	content := "héllo wörld çafé über"
	chunks := SplitChunks(content, &types.ChunkingConfig{MaxChars: 8})

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, content[c.ByteStart:c.ByteEnd], c.Content)
	}
}

func TestSentenceChunksNeverSplitSentences(t *testing.T) {
	sentences := []string{
		"The quick brown fox jumps over the lazy dog.",
		"A second sentence follows!",
		"Is this a question?",
		"Short one.",
		"The final sentence of the document closes things out.",
	}
	content := strings.Join(sentences, " ")

	longest := 0
	for _, s := range sentences {
		if n := utf8.RuneCountInString(s); n > longest {
			longest = n
		}
	}

	for _, maxChars := range []int{longest, longest + 10, longest * 2, len(content)} {
		chunks := SplitChunks(content, &types.ChunkingConfig{
			MaxChars: maxChars,
			Boundary: types.BoundarySentence,
		})
		require.NotEmpty(t, chunks, "maxChars=%d", maxChars)

		for _, c := range chunks {
			assert.Equal(t, content[c.ByteStart:c.ByteEnd], c.Content)
		}
		// Every sentence appears whole inside exactly one chunk.
		for _, s := range sentences {
			containing := 0
			for _, c := range chunks {
				if strings.Contains(c.Content, s) {
					containing++
				}
			}
			assert.Equal(t, 1, containing, "sentence %q, maxChars=%d", s, maxChars)
		}
	}
}

func TestSentenceChunkOversizedSentenceStaysWhole(t *testing.T) {
	long := "This single sentence is deliberately much longer than the chunk budget allows for."
	content := "Tiny. " + long + " Tail."

	chunks := SplitChunks(content, &types.ChunkingConfig{
		MaxChars: 20,
		Boundary: types.BoundarySentence,
	})

	found := false
	for _, c := range chunks {
		if strings.Contains(c.Content, long) {
			found = true
		}
	}
	assert.True(t, found, "oversized sentence must land whole in one chunk")
}

func TestParagraphChunksRespectBlankLineBoundaries(t *testing.T) {
	paragraphs := []string{
		"First paragraph with a couple of sentences. It keeps going a bit.",
		"Second paragraph, standing alone.",
		"Third paragraph ends the document.",
	}
	content := strings.Join(paragraphs, "\n\n")

	chunks := SplitChunks(content, &types.ChunkingConfig{
		MaxChars: 80,
		Boundary: types.BoundaryParagraph,
	})

	require.NotEmpty(t, chunks)
	for _, p := range paragraphs {
		containing := 0
		for _, c := range chunks {
			if strings.Contains(c.Content, p) {
				containing++
			}
		}
		assert.Equal(t, 1, containing, "paragraph %q", p)
	}
}

func TestSplitChunksEmptyContent(t *testing.T) {
	chunks := SplitChunks("", &types.ChunkingConfig{MaxChars: 100})
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}

func TestChunkTokenEstimate(t *testing.T) {
	chunks := SplitChunks(strings.Repeat("x", 40), &types.ChunkingConfig{MaxChars: 40})
	require.Len(t, chunks, 1)
	assert.Equal(t, 10, chunks[0].TokenCount)

	chunks = SplitChunks("ab", &types.ChunkingConfig{MaxChars: 40})
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].TokenCount, "token estimate never drops below one")
}
