// Package chunker splits documents into overlapping fixed-size text windows.
//
// Chunking is pure and deterministic: the same input always produces the
// same chunks, which is what makes re-indexing reproducible.
package chunker

import (
	"errors"
	"fmt"
)

// ErrConfig reports invalid chunking parameters.
var ErrConfig = errors.New("chunker: invalid configuration")

// Chunk is a bounded window of a source document, the unit of embedding
// and retrieval. CharStart/CharEnd are byte offsets into the original text
// (half-open interval).
type Chunk struct {
	Text      string
	Index     int
	CharStart int
	CharEnd   int
}

// Chunks splits text into consecutive windows of length size, each window
// starting size-overlap bytes after the previous one. The final window may
// be shorter than size. Empty text yields no chunks.
//
// size must be positive and overlap must be smaller than size; otherwise
// windows would not advance and chunking would never terminate.
func Chunks(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d must be positive", ErrConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, size=%d)", ErrConfig, overlap, size)
	}

	var chunks []Chunk
	step := size - overlap
	for start, idx := 0, 0; start < len(text); start, idx = start+step, idx+1 {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, Chunk{
			Text:      text[start:end],
			Index:     idx,
			CharStart: start,
			CharEnd:   end,
		})
		if end == len(text) {
			break
		}
	}
	return chunks, nil
}
