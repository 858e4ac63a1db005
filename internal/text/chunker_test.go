package text

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("Short text is one chunk", func(t *testing.T) {
		s := NewSplitter(100, 20)
		chunks := s.Split("This is a simple paragraph.")
		require.Len(t, chunks, 1)
		assert.Equal(t, "This is a simple paragraph.", chunks[0])
	})

	t.Run("Whitespace only yields nothing", func(t *testing.T) {
		s := NewSplitter(100, 20)
		assert.Nil(t, s.Split("   \n\t  "))
		assert.Nil(t, s.Split(""))
	})

	t.Run("No chunk exceeds the size bound", func(t *testing.T) {
		s := NewSplitter(50, 10)
		text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
		chunks := s.Split(text)
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), 50)
			assert.NotEmpty(t, strings.TrimSpace(c))
		}
	})

	t.Run("Paragraph separator splits first", func(t *testing.T) {
		s := NewSplitter(30, 5)
		chunks := s.Split("First paragraph here.\n\nSecond paragraph here.")
		require.Len(t, chunks, 2)
		assert.Equal(t, "First paragraph here.", chunks[0])
		assert.Equal(t, "Second paragraph here.", chunks[1])
	})

	t.Run("Unbroken text falls back to character cut with overlap", func(t *testing.T) {
		s := NewSplitter(10, 3)
		text := "abcdefghijklmnopqrstuvwxy" // 25 chars, no separators
		chunks := s.Split(text)
		require.GreaterOrEqual(t, len(chunks), 3)
		assert.Equal(t, "abcdefghij", chunks[0])
		// step = size - overlap = 7, so chunk 2 repeats the last 3 chars
		assert.Equal(t, "hijklmnopq", chunks[1])
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
		}
	})

	t.Run("Large document produces proportional chunk count", func(t *testing.T) {
		s := NewSplitter(1000, 200)
		var sb strings.Builder
		for sb.Len() < 50_000 {
			sb.WriteString("lorem ipsum dolor sit amet consectetur adipiscing elit sed do ")
		}
		chunks := s.Split(sb.String())
		// Effective step is size minus overlap, roughly 800 chars per chunk.
		assert.Greater(t, len(chunks), 50)
		assert.Less(t, len(chunks), 80)
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
		}
	})

	t.Run("Defaults applied for invalid sizes", func(t *testing.T) {
		s := NewSplitter(0, -1)
		assert.Equal(t, 1000, s.ChunkSize)
		assert.Equal(t, 200, s.ChunkOverlap)

		s = NewSplitter(100, 100)
		assert.Equal(t, 100, s.ChunkSize)
		assert.Equal(t, 20, s.ChunkOverlap)
	})
}

func TestSplitDocuments(t *testing.T) {
	t.Run("Attaches independent metadata copies", func(t *testing.T) {
		s := NewSplitter(20, 5)
		meta := map[string]any{"source": "doc.txt"}
		chunks := s.SplitDocuments("First paragraph here.\n\nSecond paragraph here.", meta)
		require.Len(t, chunks, 2)

		chunks[0].Metadata["chunk_index"] = 0
		_, leaked := chunks[1].Metadata["chunk_index"]
		assert.False(t, leaked, "metadata maps must not be shared between chunks")
		assert.Equal(t, "doc.txt", chunks[1].Metadata["source"])
	})

	t.Run("Empty input yields no chunks", func(t *testing.T) {
		s := NewSplitter(100, 20)
		assert.Empty(t, s.SplitDocuments("  ", map[string]any{"a": 1}))
	})
}
