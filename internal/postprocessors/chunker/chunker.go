// Package chunker splits normalized text into overlapping, size-bounded chunks.
//
// Sizes are expressed in tokens and converted to characters with a fixed
// characters-per-token estimate. Offsets are rune offsets into the input, so
// chunk boundaries never split a multi-byte character.
package chunker

import (
	"fmt"
	"math"
	"unicode"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

// DefaultChunkSize is the default number of tokens per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping tokens.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// CharsPerToken is the default characters-per-token estimate.
const CharsPerToken = 3.5

// boundaryTolerance is the fraction of a window, measured back from the hard
// limit, searched for a paragraph or sentence boundary.
const boundaryTolerance = 0.2

// Chunker splits text into chunks. It holds no mutable state and is safe
// for concurrent use.
type Chunker struct {
	size          int
	overlap       int
	preserve      bool
	charsPerToken float64

	sizeChars    int
	overlapChars int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in tokens.
func WithChunkSize(tokens int) Option {
	return func(c *Chunker) {
		c.size = tokens
	}
}

// WithOverlap sets the overlap between consecutive chunks in tokens.
func WithOverlap(tokens int) Option {
	return func(c *Chunker) {
		c.overlap = tokens
	}
}

// WithPreserveStructure toggles ending chunks on paragraph and sentence boundaries.
func WithPreserveStructure(preserve bool) Option {
	return func(c *Chunker) {
		c.preserve = preserve
	}
}

// WithCharsPerToken overrides the characters-per-token estimate.
func WithCharsPerToken(ratio float64) Option {
	return func(c *Chunker) {
		if ratio > 0 {
			c.charsPerToken = ratio
		}
	}
}

// New creates a chunker. It rejects a non-positive size, a negative overlap
// and an overlap that is not strictly less than the size.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:          DefaultChunkSize,
		overlap:       DefaultChunkOverlap,
		preserve:      domain.DefaultPreserveStructure,
		charsPerToken: CharsPerToken,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, c.size)
	}
	if c.overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidInput, c.overlap)
	}
	if c.overlap >= c.size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be less than chunk size %d",
			domain.ErrInvalidInput, c.overlap, c.size)
	}

	c.sizeChars = int(math.Round(float64(c.size) * c.charsPerToken))
	c.overlapChars = int(math.Round(float64(c.overlap) * c.charsPerToken))
	if c.sizeChars < 1 {
		c.sizeChars = 1
	}
	if c.overlapChars >= c.sizeChars {
		c.overlapChars = c.sizeChars - 1
	}
	return c, nil
}

// FromSettings creates a chunker from a settings snapshot.
func FromSettings(s domain.ChunkingSettings) (*Chunker, error) {
	return New(
		WithChunkSize(s.Size),
		WithOverlap(s.Overlap),
		WithPreserveStructure(s.PreserveStructure),
	)
}

// Size returns the chunk size in tokens.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in tokens.
func (c *Chunker) Overlap() int { return c.overlap }

// EstimateTokens estimates the token count of text.
func (c *Chunker) EstimateTokens(text string) int {
	return c.estimate(len([]rune(text)))
}

func (c *Chunker) estimate(runes int) int {
	return int(math.Ceil(float64(runes) / c.charsPerToken))
}

// Split returns the chunks of text in order. Empty text yields no chunks;
// text shorter than one chunk yields exactly one. The result depends only
// on text and the chunker settings.
func (c *Chunker) Split(text string) []domain.Chunk {
	runes := []rune(text)
	total := len(runes)
	if total == 0 {
		return nil
	}

	step := c.sizeChars - c.overlapChars
	chunks := make([]domain.Chunk, 0, total/step+1)

	start := 0
	for {
		end := start + c.sizeChars
		if end > total {
			end = total
		}
		if end < total && c.preserve {
			end = c.boundary(runes, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			Index:   len(chunks),
			Start:   start,
			End:     end,
			Tokens:  c.estimate(end - start),
			Content: string(runes[start:end]),
		})

		if end >= total {
			return chunks
		}

		next := end - c.overlapChars
		if next <= start {
			next = start + 1
		}
		start = next
	}
}

// boundary returns the preferred chunk end in (start, hardEnd]. It looks back
// from hardEnd over the tolerance window for, in order of preference, a
// paragraph break, a sentence end, a line break and any whitespace. The
// window never reaches back past start+overlap so the next chunk still
// advances. Without a boundary it returns hardEnd.
func (c *Chunker) boundary(runes []rune, start, hardEnd int) int {
	lo := hardEnd - int(float64(c.sizeChars)*boundaryTolerance)
	if floor := start + c.overlapChars + 1; lo < floor {
		lo = floor
	}
	if lo >= hardEnd {
		return hardEnd
	}

	// A candidate end e keeps runes[start:e], so rune e-1 closes the chunk.
	finders := []func(e int) bool{
		func(e int) bool { return runes[e-1] == '\n' && e >= 2 && runes[e-2] == '\n' },
		func(e int) bool { return isSentenceEnd(runes[e-1]) && unicode.IsSpace(runes[e]) },
		func(e int) bool { return runes[e-1] == '\n' },
		func(e int) bool { return unicode.IsSpace(runes[e-1]) },
	}

	for _, found := range finders {
		for e := hardEnd; e > lo; e-- {
			if found(e) {
				return e
			}
		}
	}
	return hardEnd
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	default:
		return false
	}
}
