// Package docprep shapes the text handed to the embedding backend before
// upsert: the article title weighting described in spec §4.5, grounded on
// the title-then-body concatenation pattern the teacher repo uses when
// preparing text for its embedder (internal/rag/embedder.Embedder.EmbedBatch
// receives already-assembled text; this package is where that assembly
// happens for our domain).
package docprep

import "strings"

// DefaultTitleWeightMultiplier is how many times the title is concatenated
// with itself before being prepended to the body.
const DefaultTitleWeightMultiplier = 5

// PrepareWholeArticle returns the text to embed for a whole, unchunked
// article: the title repeated multiplier times, then the body.
func PrepareWholeArticle(title, body string, multiplier int) string {
	return weightedTitle(title, multiplier) + body
}

// PrepareChunk returns the text to embed for a single chunk. Only
// chunkIndex == 0 receives title weighting, matching spec §4.2/§4.5.
func PrepareChunk(title, chunkText string, chunkIndex int, multiplier int) string {
	if chunkIndex != 0 {
		return chunkText
	}
	return weightedTitle(title, multiplier) + chunkText
}

func weightedTitle(title string, multiplier int) string {
	title = strings.TrimSpace(title)
	if title == "" || multiplier <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < multiplier; i++ {
		b.WriteString(title)
		b.WriteString(" ")
	}
	return b.String()
}
