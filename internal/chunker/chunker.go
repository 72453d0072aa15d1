// Package chunker splits document text into overlapping fixed-size chunks
// with stable, reproducible boundaries.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/notevault/notevault-cli/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1200

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 200

// Chunker splits text into fixed-size chunks with overlap.
// Chunking is a pure function of (text, size, overlap): recomputing from
// the same text always yields byte-identical chunks in identical order.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Clamp to zero overlap when the chunk size is not larger than the
	// overlap; the stride must stay positive.
	if c.overlap >= c.chunkSize {
		c.overlap = 0
	}
	return c
}

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the effective overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into chunks for the given document.
// Empty text yields no chunks; non-empty text shorter than one chunk
// size yields exactly one chunk.
func (c *Chunker) Chunk(docID, text string) []domain.Chunk {
	if text == "" {
		return nil
	}

	n := len(text)
	chunks := make([]domain.Chunk, 0, n/(c.chunkSize-c.overlap)+1)

	start := 0
	for idx := 0; start < n; idx++ {
		end := start + c.chunkSize
		if end >= n {
			end = n
		} else {
			end = adjustBoundary(text, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			DocumentID: docID,
			Index:      idx,
			Start:      start,
			End:        end,
			Text:       text[start:end],
		})

		if end == n {
			break
		}

		next := end - c.overlap
		if next <= start {
			// Overlap would rewind past the current chunk; advance without it.
			next = end
		}
		start = next
	}

	return chunks
}

// adjustBoundary moves a split point that would fall inside a multi-byte
// character or a markdown heading line back to the nearest preceding
// whitespace. Plain mid-word splits in ASCII prose are left alone so
// boundaries stay at the configured stride.
func adjustBoundary(text string, start, end int) int {
	midRune := !utf8.RuneStart(text[end])
	if !midRune && !insideHeadingLine(text, end) {
		return end
	}

	// Prefer the nearest preceding whitespace, but never rewind past the
	// chunk start.
	for i := end - 1; i > start; i-- {
		switch text[i] {
		case ' ', '\t', '\n', '\r':
			return i + 1
		}
	}

	// No whitespace in range: fall back to the previous rune boundary so
	// no character is torn apart.
	for midRune && end > start+1 {
		end--
		midRune = !utf8.RuneStart(text[end])
	}
	return end
}

// insideHeadingLine reports whether pos falls within a markdown heading
// line (a line starting with '#') rather than at its edge.
func insideHeadingLine(text string, pos int) bool {
	if text[pos] == '\n' {
		return false
	}
	lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
	if lineStart == pos {
		return false
	}
	return text[lineStart] == '#'
}
