package retrieval

import "strings"

const (
	DefaultChunkSize    = 900
	DefaultChunkOverlap = 150
)

// Chunk splits text into overlapping windows of at most size characters.
// Each window after the first starts overlap characters before the previous
// window's end. The input is trimmed first, windows that are blank are
// dropped, and the last window always reaches the end of the text. Lengths
// are counted in runes so multi-byte characters are never split.
//
// size <= 0 falls back to DefaultChunkSize, a negative overlap is treated as
// zero and an overlap >= size is clamped to size-1 so the window always
// advances.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []string
	start := 0
	for start < n {
		end := min(n, start+size)
		if c := string(runes[start:end]); strings.TrimSpace(c) != "" {
			chunks = append(chunks, c)
		}
		if end == n {
			break
		}
		start = max(0, end-overlap)
	}
	return chunks
}
