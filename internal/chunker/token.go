package chunker

import "strings"

// EstimateTokens approximates the token count of text at ~1.33 tokens per word.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(strings.Fields(text))) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// BatchByTokens groups texts into consecutive batches holding at most
// maxItems texts and roughly maxTokens tokens. A single oversized text
// forms its own batch. It returns index ranges [start, end).
func BatchByTokens(texts []string, maxItems, maxTokens int) [][2]int {
	if maxItems <= 0 {
		maxItems = len(texts)
	}
	var batches [][2]int
	start, tokens := 0, 0
	for i, t := range texts {
		n := EstimateTokens(t)
		if i > start && (i-start >= maxItems || (maxTokens > 0 && tokens+n > maxTokens)) {
			batches = append(batches, [2]int{start, i})
			start, tokens = i, 0
		}
		tokens += n
	}
	if start < len(texts) {
		batches = append(batches, [2]int{start, len(texts)})
	}
	return batches
}
