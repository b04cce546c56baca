package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyText(t *testing.T) {
	c := NewChunker(nil)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\n  "))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200})
	chunks := c.Split("  a short document  ")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestSplitKeepsParagraphsTogether(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 100, ChunkOverlap: 10})
	text := "first paragraph with a few words" + "\n\n" + "second paragraph with a few words"

	chunks := c.Split(text)
	require.Len(t, chunks, 1, "both paragraphs fit one chunk")
	assert.Equal(t, text, chunks[0].Content)
}

func TestSplitRespectsChunkSize(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 100, ChunkOverlap: 20})

	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "word%03d ", i)
	}
	chunks := c.Split(sb.String())
	require.Greater(t, len(chunks), 1)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 100, "chunk %d too large", ch.Index)
		assert.NotEmpty(t, strings.TrimSpace(ch.Content))
	}
}

func TestSplitLosesNoWords(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 80, ChunkOverlap: 16})

	var words []string
	for i := 0; i < 150; i++ {
		words = append(words, fmt.Sprintf("token%03d", i))
	}
	chunks := c.Split(strings.Join(words, " "))

	seen := map[string]bool{}
	for _, ch := range chunks {
		for _, w := range strings.Fields(ch.Content) {
			seen[w] = true
		}
	}
	for _, w := range words {
		assert.True(t, seen[w], "word %s missing from all chunks", w)
	}
}

func TestSplitCarriesOverlap(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 100, ChunkOverlap: 30})

	var words []string
	for i := 0; i < 100; i++ {
		words = append(words, fmt.Sprintf("w%02d", i))
	}
	chunks := c.Split(strings.Join(words, " "))
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Content)
		next := strings.Fields(chunks[i].Content)

		// The next chunk must open with a suffix of the previous one.
		var shared int
		for k := 1; k <= len(prev) && k <= len(next); k++ {
			if equalSlices(prev[len(prev)-k:], next[:k]) {
				shared = k
			}
		}
		assert.Greater(t, shared, 0,
			"chunk %d should start with the tail of chunk %d", i, i-1)
	}
}

func equalSlices(a, b []string) bool {
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

func TestSplitHardSplitsUnbreakableText(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 100, ChunkOverlap: 20})
	text := strings.Repeat("x", 350)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.Len(t, chunks[0].Content, 100)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 100)
		assert.True(t, strings.HasSuffix(text, ch.Content) || strings.Contains(text, ch.Content))
	}
}

func TestSplitMergesUndersizedFragments(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 100, ChunkOverlap: 10, MinChunkSize: 20})
	text := strings.Repeat("a sentence of reasonable length here. ", 5) + "\n\nok"

	chunks := c.Split(text)
	for _, ch := range chunks {
		assert.GreaterOrEqual(t, len(ch.Content), 20,
			"fragment %q should have been merged", ch.Content)
	}
}

func TestSplitIndexesAreSequential(t *testing.T) {
	c := NewChunker(&ChunkerConfig{ChunkSize: 60, ChunkOverlap: 10})
	chunks := c.Split(strings.Repeat("some words here ", 40))
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}
