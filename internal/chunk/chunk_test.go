package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitterValidation(t *testing.T) {
	_, err := NewSplitter(0, 0)
	assert.Error(t, err)

	_, err = NewSplitter(700, 700)
	assert.Error(t, err)

	_, err = NewSplitter(700, -1)
	assert.Error(t, err)

	s, err := NewSplitter(700, 120)
	require.NoError(t, err)
	assert.Equal(t, 700, s.Size())
	assert.Equal(t, 120, s.Overlap())
}

// TestSplitDocumentedBoundaries checks the canonical 2000-character scenario:
// size=700, overlap=120 must produce exactly four chunks with boundaries
// 0-700, 580-1280, 1160-1860, 1740-2000.
func TestSplitDocumentedBoundaries(t *testing.T) {
	s, err := NewSplitter(700, 120)
	require.NoError(t, err)

	text := strings.Repeat("abcd", 500) // 2000 chars, no whitespace
	chunks := s.Split(text)

	require.Len(t, chunks, 4)

	wantBounds := [][2]int{{0, 700}, {580, 1280}, {1160, 1860}, {1740, 2000}}
	for i, want := range wantBounds {
		assert.Equal(t, i, chunks[i].Position)
		assert.Equal(t, want[0], chunks[i].Start, "chunk %d start", i)
		assert.Equal(t, want[1], chunks[i].End, "chunk %d end", i)
		assert.Equal(t, want[1]-want[0], len(chunks[i].Content))
	}
}

func TestSplitDeterministic(t *testing.T) {
	s, err := NewSplitter(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("incident response playbook section ", 40)
	first := s.Split(text)
	second := s.Split(text)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestSplitLastChunkEndsAtTextLength(t *testing.T) {
	s, err := NewSplitter(100, 20)
	require.NoError(t, err)

	for _, n := range []int{1, 99, 100, 101, 250, 400} {
		text := strings.Repeat("x", n)
		chunks := s.Split(text)
		require.NotEmpty(t, chunks, "length %d", n)
		assert.Equal(t, n, chunks[len(chunks)-1].End, "length %d", n)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s, err := NewSplitter(700, 120)
	require.NoError(t, err)

	chunks := s.Split("evacuate the north stand first")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, "evacuate the north stand first", chunks[0].Content)
}

func TestSplitEmptyAndWhitespaceOnly(t *testing.T) {
	s, err := NewSplitter(100, 20)
	require.NoError(t, err)

	assert.Empty(t, s.Split(""))
	// Whitespace-only windows are dropped after trimming.
	assert.Empty(t, s.Split("     "))
}

func TestSplitNoChunkEmptyAfterTrim(t *testing.T) {
	s, err := NewSplitter(10, 3)
	require.NoError(t, err)

	text := "abc        def        ghi        jkl"
	for _, c := range s.Split(text) {
		assert.NotEmpty(t, c.Content)
		assert.Equal(t, c.Content, strings.TrimSpace(c.Content))
	}
}

// TestSplitCoverage verifies the non-overlap regions of consecutive chunks
// reconstruct the original text with no gaps.
func TestSplitCoverage(t *testing.T) {
	s, err := NewSplitter(40, 10)
	require.NoError(t, err)

	text := strings.Repeat("0123456789", 21) // 210 chars
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)

	var rebuilt strings.Builder
	runes := []rune(text)
	prevEnd := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Start, prevEnd, "gap before chunk %d", c.Position)
		from := c.Start
		if from < prevEnd {
			from = prevEnd
		}
		rebuilt.WriteString(string(runes[from:c.End]))
		prevEnd = c.End
	}

	assert.Equal(t, text, rebuilt.String())
}

func TestSplitMultibyteRunes(t *testing.T) {
	s, err := NewSplitter(5, 2)
	require.NoError(t, err)

	text := "日本語のテキストを分割する"
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)

	// Offsets are rune-based; no chunk may contain a broken rune.
	for _, c := range chunks {
		assert.True(t, len([]rune(c.Content)) <= 5)
		for _, r := range c.Content {
			assert.NotEqual(t, '�', r)
		}
	}
	assert.Equal(t, len([]rune(text)), chunks[len(chunks)-1].End)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses runs", "a  b\t\tc\n\nd", "a b c d"},
		{"trims edges", "  hello world  ", "hello world"},
		{"strips nul bytes", "he\x00llo", "hello"},
		{"nul inside whitespace", "a \x00 b", "a b"},
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
		{"crlf", "line one\r\nline two", "line one line two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
