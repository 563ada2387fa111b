package chunker

// DefaultSize is the window width used when a caller passes a non-positive size.
const DefaultSize = 1000

// Split cuts text into contiguous, non-overlapping windows of at most size
// characters, in text order. Only the last window may be shorter.
// Sizes are counted in runes so multi-byte characters are never split.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
