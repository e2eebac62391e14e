package chunker

import (
	"ragstore/internal/domain"
)

// Splitter splits text into overlapping chunks bounded by a maximum size.
// Cuts prefer the largest structural boundary available inside the window:
// paragraph break, then line break, then sentence end, then word boundary,
// falling back to a hard character cut. Split is a pure function of its
// inputs: the same text always yields the same chunk sequence.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a Splitter. Out-of-range arguments fall back to sane values:
// chunkSize 500, overlap a quarter of the size.
func New(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// ChunkSize returns the configured maximum chunk length in characters.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the configured overlap length in characters.
func (s *Splitter) ChunkOverlap() int { return s.chunkOverlap }

// Split cuts text into ordered, non-empty chunks. Each chunk after the first
// re-includes the trailing chunkOverlap characters of its predecessor, so the
// chunks cover the input with no gaps. Empty input yields no chunks; input
// shorter than chunkSize yields a single chunk. Lengths are measured in runes.
func (s *Splitter) Split(text string, documentID string) []domain.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []domain.Chunk
	start := 0
	idx := 0
	for {
		if len(runes)-start <= s.chunkSize {
			chunks = append(chunks, s.chunk(runes, start, len(runes), documentID, idx))
			return chunks
		}
		cut := s.cut(runes, start, start+s.chunkSize)
		chunks = append(chunks, s.chunk(runes, start, cut, documentID, idx))
		idx++
		next := cut - s.chunkOverlap
		if next <= start {
			// Boundary landed so close to the window start that stepping
			// back by the overlap would stall; advance without overlap.
			next = cut
		}
		start = next
	}
}

func (s *Splitter) chunk(runes []rune, start, end int, documentID string, idx int) domain.Chunk {
	return domain.Chunk{
		Text:       string(runes[start:end]),
		DocumentID: documentID,
		Index:      idx,
	}
}

// cut picks the cut position in (start, end], trying boundary kinds from
// coarse to fine and scanning each backwards from the window end.
func (s *Splitter) cut(runes []rune, start, end int) int {
	// Paragraph break: cut after a blank line.
	for i := end - 1; i > start; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	// Line break.
	for i := end - 1; i > start; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	// Sentence end: terminator followed by a space; cut after the space.
	for i := end - 1; i > start; i-- {
		if isSpace(runes[i]) && isSentenceEnd(runes[i-1]) {
			return i + 1
		}
	}
	// Word boundary.
	for i := end - 1; i > start; i-- {
		if isSpace(runes[i]) {
			return i + 1
		}
	}
	// A single indivisible token fills the window; hard cut.
	return end
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
