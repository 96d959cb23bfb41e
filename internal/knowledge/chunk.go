package knowledge

import "strings"

const (
	chunkWordLimit   = 300
	chunkWordOverlap = 40
)

// splitChunks breaks text into word-bounded chunks with a small overlap so
// a sentence split across a boundary still matches in both neighbors.
func splitChunks(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= chunkWordLimit {
		return []string{strings.Join(words, " ")}
	}

	var chunks []string
	step := chunkWordLimit - chunkWordOverlap
	for start := 0; start < len(words); start += step {
		end := start + chunkWordLimit
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
