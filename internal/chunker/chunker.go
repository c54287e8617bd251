// Package chunker splits extracted text into fixed-size overlapping chunks.
package chunker

import (
	"fmt"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// DefaultSize is the default number of runes per chunk.
const DefaultSize = 1000

// DefaultOverlap is the default number of runes consecutive chunks share.
const DefaultOverlap = 150

// Chunker produces deterministic chunks with rune offsets into the source
// text. The same text and geometry always yield the same chunks, so
// repeated indexing of an unchanged document is a no-op at the store.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithSize sets the chunk size in runes.
func WithSize(size int) Option {
	return func(c *Chunker) {
		c.size = size
	}
}

// WithOverlap sets the overlap between consecutive chunks in runes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// New creates a chunker, rejecting geometry that cannot terminate or
// would produce empty chunks. Overlap must be strictly smaller than size;
// there is no silent clamping, a bad configuration fails the run before
// any document is touched.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, c.size)
	}
	if c.overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidConfiguration, c.overlap)
	}
	if c.overlap >= c.size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			domain.ErrInvalidConfiguration, c.overlap, c.size)
	}

	return c, nil
}

// Size returns the configured chunk size in runes.
func (c *Chunker) Size() int {
	return c.size
}

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk splits text into chunks of at most Size runes, each starting
// Size-Overlap runes after the previous one. Offsets are rune offsets:
// []rune(text)[chunk.Start:chunk.End] reproduces chunk.Text exactly.
//
// Empty text produces no chunks. Text no longer than one chunk produces
// exactly one. The final chunk may be shorter than Size. Whitespace is
// preserved as-is so offsets always reconstruct.
func (c *Chunker) Chunk(text string) []domain.Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]domain.Chunk, 0, n/step+1)

	position := 0
	for start := 0; start < n; start += step {
		end := start + c.size
		if end > n {
			end = n
		}

		chunks = append(chunks, domain.Chunk{
			Position: position,
			Start:    start,
			End:      end,
			Text:     string(runes[start:end]),
		})
		position++

		// The chunk that reaches the end of the text is the last one;
		// stepping again would emit a window fully inside it.
		if end == n {
			break
		}
	}

	return chunks
}
