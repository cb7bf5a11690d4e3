package docs

import (
	"strings"
	"unicode/utf8"
)

// Span is one piece of split text with its byte offsets in the source.
type Span struct {
	Text  string
	Start int
	End   int
}

// separators ordered from most to least preferred cut point.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts document content into overlapping spans, preferring
// paragraph boundaries, then line breaks, then sentence ends, then word
// breaks, before falling back to a hard cut.
type Splitter struct {
	// ChunkSize is the maximum span length in bytes.
	ChunkSize int
	// Overlap is how many trailing bytes of one span are repeated at the
	// start of the next.
	Overlap int
}

// NewSplitter creates a splitter. Zero values fall back to defaults
// (1000 byte chunks, 200 byte overlap).
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

// Split cuts content into spans. Content at or under ChunkSize yields a
// single span. Empty or whitespace-only content yields nil.
func (s *Splitter) Split(content string) []Span {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if len(content) <= s.ChunkSize {
		return []Span{{Text: content, Start: 0, End: len(content)}}
	}

	var spans []Span
	start := 0
	for start < len(content) {
		end := start + s.ChunkSize
		if end >= len(content) {
			spans = append(spans, Span{Text: content[start:], Start: start, End: len(content)})
			break
		}

		cut := s.findCut(content, start, end)
		spans = append(spans, Span{Text: content[start:cut], Start: start, End: cut})

		// Back up by the overlap, but always make forward progress.
		next := cut - s.Overlap
		if next > start {
			next = runeStart(content, next)
		}
		if next <= start {
			next = cut
		}
		start = next
	}
	return spans
}

// findCut finds the best boundary in content[start:limit], searching each
// separator in preference order from the limit backwards. A boundary in
// the first half of the window is ignored so spans stay near ChunkSize.
// Falls back to a hard cut at limit, kept on a rune boundary so multibyte
// content never splits mid-rune.
func (s *Splitter) findCut(content string, start, limit int) int {
	window := content[start:limit]
	minCut := len(window) / 2
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx > minCut {
			return start + idx + len(sep)
		}
	}
	cut := runeStart(content, limit)
	if cut <= start {
		_, size := utf8.DecodeRuneInString(content[start:])
		cut = start + size
	}
	return cut
}

// runeStart walks i back to the nearest rune start.
func runeStart(content string, i int) int {
	for i > 0 && !utf8.RuneStart(content[i]) {
		i--
	}
	return i
}
