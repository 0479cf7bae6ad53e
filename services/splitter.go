package services

import "strings"

// TextSplitter splits extracted document text into overlapping chunks.
// Windows advance by chunkSize-overlap characters; each cut prefers the
// latest natural boundary (paragraph, newline, sentence, word) inside
// the window and falls back to a hard cut when the text has none.
type TextSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

func NewTextSplitter(chunkSize, overlap int) *TextSplitter {
	if overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return &TextSplitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: []string{"\n\n", "\n", ". ", " "},
	}
}

// Split returns the chunk texts in document order. Text no longer than
// one chunk size produces exactly one chunk.
func (s *TextSplitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := s.findCut(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))
		start = cut - s.overlap
	}

	return chunks
}

// findCut picks the cut position for a window. The boundary search is
// bounded below so the next window always makes forward progress.
func (s *TextSplitter) findCut(runes []rune, start, end int) int {
	window := string(runes[start:end])
	// A cut at or before start+overlap would stall the scan.
	minCut := s.overlap + 1

	for _, sep := range s.separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		cut := len([]rune(window[:idx])) + len([]rune(sep))
		if cut > minCut {
			return start + cut
		}
	}

	return end
}
