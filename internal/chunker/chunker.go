// Package chunker splits long article bodies into overlapping,
// paragraph-boundary-preserving windows suitable for independent indexing.
//
// The splitting strategy is grounded on the teacher's
// internal/rag/chunker.SimpleChunker (target-size windows with overlap) and
// internal/textsplitters/boundary.go's paragraph/sentence unit grouping, but
// operates in whole words rather than characters or tokens, and prefers to
// land on a paragraph boundary within a small search window before falling
// back to the nearest word boundary, per spec.
package chunker

import (
	"strings"
)

// Config controls chunking behavior.
type Config struct {
	// ThresholdWords: articles at or below this word count are never chunked.
	ThresholdWords int
	// ChunkSizeWords: target number of words per chunk.
	ChunkSizeWords int
	// OverlapWords: words of overlap between consecutive chunks.
	OverlapWords int
	// SectionMarkers are preferred boundary patterns, most preferred first.
	// The zero value defaults to {"\n\n", "\n"} (paragraph, then line break).
	SectionMarkers []string
	// BoundarySearchWords bounds how far (in words) a boundary search will
	// look before falling back to a hard word-boundary cut. Zero defaults
	// to half the chunk size.
	BoundarySearchWords int
}

func (c Config) withDefaults() Config {
	if c.ThresholdWords <= 0 {
		c.ThresholdWords = 1000
	}
	if c.ChunkSizeWords <= 0 {
		c.ChunkSizeWords = 400
	}
	if c.OverlapWords < 0 {
		c.OverlapWords = 0
	}
	if len(c.SectionMarkers) == 0 {
		c.SectionMarkers = []string{"\n\n", "\n"}
	}
	if c.BoundarySearchWords <= 0 {
		c.BoundarySearchWords = c.ChunkSizeWords / 2
		if c.BoundarySearchWords < 10 {
			c.BoundarySearchWords = 10
		}
	}
	return c
}

// Chunk is a single produced window of an article's body.
type Chunk struct {
	Index         int
	Text          string
	WordCount     int
	StartPosition int // character offset into the original body
	TitleWeighted bool
}

// word is a single token of the body together with its byte offsets, so
// chunk boundaries can be computed in word-space but reported in
// character-space.
type word struct {
	start, end int // byte offsets into the original text
}

// Chunker decides whether to chunk an article and, if so, produces a finite
// ordered sequence of chunks.
type Chunker struct{}

// New returns a Chunker. It carries no state; Config is passed per call.
func New() Chunker { return Chunker{} }

// Chunk splits body into chunks according to cfg. If the body does not
// exceed cfg.ThresholdWords, it returns (nil, false, nil): the caller should
// index the whole article instead. Title weighting is the caller's
// responsibility (see package docprep); Chunk only marks which chunk
// (index 0) is eligible.
func (Chunker) Chunk(body string, cfg Config) ([]Chunk, bool, error) {
	cfg = cfg.withDefaults()
	words := splitWords(body)
	if len(words) <= cfg.ThresholdWords {
		return nil, false, nil
	}

	var chunks []Chunk
	idx := 0
	start := 0
	for start < len(words) {
		end := start + cfg.ChunkSizeWords
		if end >= len(words) {
			end = len(words)
		} else {
			end = preferBoundary(body, words, start, end, cfg)
		}
		if end <= start {
			end = start + 1 // never produce an empty/zero-progress chunk
		}

		text := sliceWords(body, words, start, end)
		chunks = append(chunks, Chunk{
			Index:         idx,
			Text:          text,
			WordCount:     end - start,
			StartPosition: words[start].start,
			TitleWeighted: idx == 0,
		})
		idx++

		if end >= len(words) {
			break
		}
		next := end - cfg.OverlapWords
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks, true, nil
}

// preferBoundary nudges the proposed cut point [start,end) for words to the
// nearest occurrence of a section marker within the search window, without
// ever extending past len(words) or cutting a word in half. Falls back to
// the hard word boundary at `end` when no marker is found in range.
func preferBoundary(body string, words []word, start, end int, cfg Config) int {
	searchFrom := end - cfg.BoundarySearchWords
	if searchFrom < start+1 {
		searchFrom = start + 1
	}
	searchTo := end + cfg.BoundarySearchWords
	if searchTo > len(words) {
		searchTo = len(words)
	}

	for _, marker := range cfg.SectionMarkers {
		// Prefer the boundary closest to the original `end`.
		best := -1
		bestDist := 1 << 30
		for w := searchFrom; w < searchTo; w++ {
			// A boundary "at" word w means the marker appears in the gap
			// between word w-1 and word w (i.e. immediately before word w
			// starts). Check the text between the end of the previous word
			// and the start of this one.
			if w == 0 {
				continue
			}
			gap := body[words[w-1].end:words[w].start]
			if strings.Contains(gap, marker) {
				dist := w - end
				if dist < 0 {
					dist = -dist
				}
				if dist < bestDist {
					bestDist = dist
					best = w
				}
			}
		}
		if best != -1 {
			return best
		}
	}
	return end
}

// splitWords tokenizes on whitespace runs, recording byte offsets so chunk
// text can be reconstructed with its original internal whitespace (not
// normalized), and so StartPosition reports real offsets into body.
func splitWords(body string) []word {
	var words []word
	n := len(body)
	i := 0
	for i < n {
		for i < n && isSpace(body[i]) {
			i++
		}
		if i >= n {
			break
		}
		j := i
		for j < n && !isSpace(body[j]) {
			j++
		}
		words = append(words, word{start: i, end: j})
		i = j
	}
	return words
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func sliceWords(body string, words []word, start, end int) string {
	if start >= end {
		return ""
	}
	return strings.TrimSpace(body[words[start].start:words[end-1].end])
}
