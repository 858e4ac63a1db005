package text

import (
	"maps"
	"strings"
	"unicode/utf8"
)

// Chunk is the atomic unit that gets embedded and indexed: bounded text plus
// the provenance metadata of its source.
type Chunk struct {
	Text     string
	Metadata map[string]any
}

// separators are tried coarsest-first; a piece that still exceeds the chunk
// size is re-split with the finer separators, down to a raw character cut.
var separators = []string{"\n\n", "\n", ".", " ", ""}

// Splitter splits text into chunks of at most ChunkSize characters with
// ChunkOverlap trailing characters repeated at the start of the next chunk.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func NewSplitter(chunkSize, chunkOverlap int) Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Split returns the chunk texts for the input. Whitespace-only input yields
// nothing; no returned chunk is empty or longer than ChunkSize.
func (s Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, separators)
}

// SplitDocuments chunks text and attaches a copy of metadata to every chunk.
func (s Splitter) SplitDocuments(text string, metadata map[string]any) []Chunk {
	pieces := s.Split(text)
	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, Chunk{Text: p, Metadata: maps.Clone(metadata)})
	}
	return chunks
}

func (s Splitter) split(text string, seps []string) []string {
	sep, rest := pickSeparator(text, seps)
	if sep == "" {
		return s.cut(text)
	}

	var final, pending []string
	for _, piece := range strings.Split(text, sep) {
		if utf8.RuneCountInString(piece) <= s.ChunkSize {
			pending = append(pending, piece)
			continue
		}
		final = append(final, s.merge(pending, sep)...)
		pending = nil
		final = append(final, s.split(piece, rest)...)
	}
	return append(final, s.merge(pending, sep)...)
}

func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// merge greedily joins small pieces back together up to ChunkSize, carrying
// ChunkOverlap characters of trailing pieces into the next chunk.
func (s Splitter) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)

	var chunks []string
	var current []string
	total := 0

	flush := func() {
		joined := strings.TrimSpace(strings.Join(current, sep))
		if joined != "" {
			chunks = append(chunks, joined)
		}
	}

	for _, piece := range pieces {
		length := utf8.RuneCountInString(piece)
		if total+length+sepLen*len(current) > s.ChunkSize && len(current) > 0 {
			flush()
			// Keep at most ChunkOverlap characters of trailing pieces.
			for total > s.ChunkOverlap || (total+length+sepLen*len(current) > s.ChunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += length
	}
	flush()
	return chunks
}

// cut is the character-level fallback for text with no usable separator.
func (s Splitter) cut(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
