package ingest

import (
	"strings"
)

// ChunkerConfig holds chunking parameters.
type ChunkerConfig struct {
	ChunkSize    int `json:"chunk_size"`    // target chunk size in characters
	ChunkOverlap int `json:"chunk_overlap"` // overlap carried between chunks
	MinChunkSize int `json:"min_chunk_size"`
}

func defaultChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MinChunkSize: 50,
	}
}

// Chunk is one slice of a document.
type Chunk struct {
	Content string `json:"content"`
	Index   int    `json:"index"`
}

// Chunker splits text recursively on progressively weaker separators
// (paragraph, line, word) so chunks end on natural boundaries where
// possible, with configurable overlap between consecutive chunks.
type Chunker struct {
	config *ChunkerConfig
}

// separators, strongest boundary first. The empty separator means a hard
// character split and is the terminal fallback.
var separators = []string{"\n\n", "\n", " ", ""}

// NewChunker creates a chunker with the given configuration.
func NewChunker(config *ChunkerConfig) *Chunker {
	if config == nil {
		config = defaultChunkerConfig()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	return &Chunker{config: config}
}

// Split divides text into chunks. Chunks shorter than MinChunkSize are
// merged into their neighbor so retrieval never indexes fragments.
func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pieces := c.splitText(text, separators)

	// Merge undersized fragments forward.
	var merged []string
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(merged) > 0 && len(p) < c.config.MinChunkSize {
			merged[len(merged)-1] = merged[len(merged)-1] + " " + p
			continue
		}
		merged = append(merged, p)
	}
	if len(merged) > 1 && len(merged[0]) < c.config.MinChunkSize {
		merged[1] = merged[0] + " " + merged[1]
		merged = merged[1:]
	}

	chunks := make([]Chunk, 0, len(merged))
	for i, p := range merged {
		chunks = append(chunks, Chunk{Content: p, Index: i})
	}
	return chunks
}

// splitText splits on the strongest separator present, merges the splits
// back up to ChunkSize with overlap, and recurses into any split that is
// still too large with the remaining weaker separators.
func (c *Chunker) splitText(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	rest := []string{}
	for i, s := range seps {
		if s == "" {
			sep = ""
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		return c.hardSplit(text)
	}
	splits = strings.Split(text, sep)

	var final []string
	var pending []string
	for _, s := range splits {
		if len(s) < c.config.ChunkSize {
			pending = append(pending, s)
			continue
		}
		if len(pending) > 0 {
			final = append(final, c.mergeSplits(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			final = append(final, c.hardSplit(s)...)
		} else {
			final = append(final, c.splitText(s, rest)...)
		}
	}
	if len(pending) > 0 {
		final = append(final, c.mergeSplits(pending, sep)...)
	}
	return final
}

// mergeSplits greedily packs splits into chunks of up to ChunkSize,
// retaining an overlap tail when starting the next chunk.
func (c *Chunker) mergeSplits(splits []string, sep string) []string {
	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(window, sep))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, s := range splits {
		addition := len(s)
		if len(window) > 0 {
			addition += len(sep)
		}
		if total+addition > c.config.ChunkSize && len(window) > 0 {
			flush()
			// Drop from the front until only the overlap remains.
			for total > c.config.ChunkOverlap && len(window) > 0 {
				total -= len(window[0])
				if len(window) > 1 {
					total -= len(sep)
				}
				window = window[1:]
			}
		}
		window = append(window, s)
		total += addition
	}
	flush()
	return chunks
}

// hardSplit slices text into ChunkSize pieces with ChunkOverlap stride,
// used when no separator can break it up.
func (c *Chunker) hardSplit(text string) []string {
	if len(text) <= c.config.ChunkSize {
		return []string{text}
	}
	step := c.config.ChunkSize - c.config.ChunkOverlap
	var out []string
	for start := 0; start < len(text); start += step {
		end := start + c.config.ChunkSize
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		out = append(out, text[start:end])
	}
	return out
}
