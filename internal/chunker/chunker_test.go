package chunker

import (
	"strings"
	"testing"
)

func words(n int) string {
	ws := make([]string, n)
	for i := range ws {
		ws[i] = "word"
	}
	return strings.Join(ws, " ")
}

func paragraphs(paraLens ...int) string {
	var paras []string
	for _, n := range paraLens {
		paras = append(paras, words(n))
	}
	return strings.Join(paras, "\n\n")
}

func TestChunk_BelowThresholdNotChunked(t *testing.T) {
	body := words(100)
	chunks, did, err := New().Chunk(body, Config{ThresholdWords: 100, ChunkSizeWords: 40, OverlapWords: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if did || chunks != nil {
		t.Fatalf("expected no chunking at exactly the threshold, got did=%v chunks=%v", did, chunks)
	}
}

func TestChunk_ThresholdPlusOneProducesAtLeastTwoChunks(t *testing.T) {
	body := words(101)
	chunks, did, err := New().Chunk(body, Config{ThresholdWords: 100, ChunkSizeWords: 60, OverlapWords: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !did {
		t.Fatalf("expected chunking above threshold")
	}
	if len(chunks) < 2 {
		t.Fatalf("expected >= 2 chunks, got %d", len(chunks))
	}
}

func TestChunk_IndicesContiguousFromZero(t *testing.T) {
	body := paragraphs(80, 80, 80, 80)
	chunks, did, err := New().Chunk(body, Config{ThresholdWords: 50, ChunkSizeWords: 90, OverlapWords: 15})
	if err != nil || !did {
		t.Fatalf("expected chunking, err=%v did=%v", err, did)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d, expected contiguous from zero", i, c.Index)
		}
	}
}

func TestChunk_NeverCutsAWord(t *testing.T) {
	body := paragraphs(300)
	chunks, _, err := New().Chunk(body, Config{ThresholdWords: 50, ChunkSizeWords: 50, OverlapWords: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range chunks {
		for _, tok := range strings.Fields(c.Text) {
			if tok != "word" {
				t.Fatalf("chunk contains a non-whole-word token: %q", tok)
			}
		}
	}
}

func TestChunk_OnlyFirstChunkIsTitleWeighted(t *testing.T) {
	body := paragraphs(300)
	chunks, _, err := New().Chunk(body, Config{ThresholdWords: 50, ChunkSizeWords: 50, OverlapWords: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("need at least two chunks for this test")
	}
	if !chunks[0].TitleWeighted {
		t.Fatalf("first chunk should be title-weighted")
	}
	for _, c := range chunks[1:] {
		if c.TitleWeighted {
			t.Fatalf("chunk %d should not be title-weighted", c.Index)
		}
	}
}

func TestChunk_PrefersParagraphBoundary(t *testing.T) {
	// Two 50-word paragraphs; target chunk size lands mid-paragraph without
	// the boundary search, so the first chunk should end exactly at the
	// paragraph break (word 50) rather than at the raw target.
	body := paragraphs(50, 50)
	chunks, _, err := New().Chunk(body, Config{ThresholdWords: 10, ChunkSizeWords: 45, OverlapWords: 0, BoundarySearchWords: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected chunks")
	}
	if chunks[0].WordCount != 50 {
		t.Fatalf("expected first chunk to land on the paragraph boundary (50 words), got %d", chunks[0].WordCount)
	}
}

func TestChunk_FallsBackToWordBoundaryWithoutMarkerInWindow(t *testing.T) {
	// A single giant paragraph with no break anywhere near the target cut.
	body := words(300)
	chunks, _, err := New().Chunk(body, Config{ThresholdWords: 10, ChunkSizeWords: 50, OverlapWords: 0, BoundarySearchWords: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected chunks")
	}
	if chunks[0].WordCount != 50 {
		t.Fatalf("expected hard word-boundary cut at 50 words, got %d", chunks[0].WordCount)
	}
}

func TestChunk_OverlapWordCount(t *testing.T) {
	body := words(500)
	chunks, _, err := New().Chunk(body, Config{ThresholdWords: 10, ChunkSizeWords: 100, OverlapWords: 20, BoundarySearchWords: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks")
	}
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1].Text)
		curWords := strings.Fields(chunks[i].Text)
		if len(prevWords) < 20 || len(curWords) < 20 {
			continue
		}
		prevTail := strings.Join(prevWords[len(prevWords)-20:], " ")
		curHead := strings.Join(curWords[:20], " ")
		if prevTail != curHead {
			t.Fatalf("chunk %d does not overlap previous chunk by 20 words", i)
		}
	}
}

func TestChunk_StartPositionIsByteOffset(t *testing.T) {
	body := "lead-in words here. " + words(200)
	chunks, did, err := New().Chunk(body, Config{ThresholdWords: 10, ChunkSizeWords: 80, OverlapWords: 0})
	if err != nil || !did {
		t.Fatalf("expected chunking, err=%v did=%v", err, did)
	}
	if chunks[0].StartPosition != 0 {
		t.Fatalf("first chunk should start at offset 0, got %d", chunks[0].StartPosition)
	}
	for _, c := range chunks {
		if c.StartPosition < 0 || c.StartPosition > len(body) {
			t.Fatalf("start position %d out of range", c.StartPosition)
		}
	}
}
