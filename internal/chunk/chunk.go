// Package chunk splits normalized document text into overlapping fixed-size
// passages for embedding and retrieval.
//
// The window advances by size-overlap, so consecutive passages share exactly
// overlap characters of context. Splitting is deterministic: the same text and
// window always produce byte-identical boundaries.
package chunk

import (
	"fmt"
	"strings"
	"unicode"
)

// Chunk is one window of normalized text.
type Chunk struct {
	// Position is the ordinal of the chunk within its source document.
	// Re-ingestion of the same text reproduces the same positions, which is
	// what makes (document, position) a stable upsert key.
	Position int

	// Start and End are rune offsets into the normalized text, retained for
	// provenance and debugging.
	Start int
	End   int

	// Content is the window text, trimmed of edge whitespace.
	Content string
}

// Splitter produces overlapping windows of a fixed rune size.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a Splitter. size must be positive and overlap must be
// smaller than size, otherwise the window could never advance.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Size returns the configured window size in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the configured overlap in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split cuts text into overlapping chunks. The last chunk always ends exactly
// at the end of text. Chunks that are empty after trimming are discarded.
//
// Split does not normalize; callers pass text through Normalize first so that
// offsets refer to the text that is actually stored.
func (s *Splitter) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	position := 0
	for start := 0; ; start += s.size - s.overlap {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, Chunk{
				Position: position,
				Start:    start,
				End:      end,
				Content:  content,
			})
			position++
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Normalize prepares raw extracted text for chunking: embedded NUL bytes are
// stripped (PostgreSQL rejects them in text columns) and whitespace runs are
// collapsed to single spaces.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inSpace := false
	for _, r := range text {
		switch {
		case r == 0:
			// drop
		case unicode.IsSpace(r):
			inSpace = true
		default:
			if inSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			inSpace = false
			b.WriteRune(r)
		}
	}

	return b.String()
}
