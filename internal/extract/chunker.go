package extract

import "strings"

// Chunk is one overlapping window of extracted source text.
type Chunk struct {
	Seq     int    `json:"seq"`
	Content string `json:"content"`
}

// ChunkText splits text into rune windows of the given size with the given
// overlap between consecutive windows. Overlap keeps sentences that straddle
// a boundary retrievable from both sides.
func ChunkText(text string, size, overlap int) []Chunk {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 8
	}
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil
	}
	runes := []rune(cleaned)
	step := size - overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, Chunk{Seq: len(chunks), Content: content})
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
