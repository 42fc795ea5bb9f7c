package docprep

import "testing"

func TestPrepareWholeArticle(t *testing.T) {
	got := PrepareWholeArticle("Permanent Revolution", "the body text", 3)
	want := "Permanent Revolution Permanent Revolution Permanent Revolution the body text"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestPrepareChunk_OnlyFirstChunkWeighted(t *testing.T) {
	first := PrepareChunk("Title", "chunk zero text", 0, 2)
	if first != "Title Title chunk zero text" {
		t.Fatalf("unexpected weighted chunk: %q", first)
	}
	second := PrepareChunk("Title", "chunk one text", 1, 2)
	if second != "chunk one text" {
		t.Fatalf("expected unweighted chunk, got %q", second)
	}
}

func TestPrepareWholeArticle_EmptyTitle(t *testing.T) {
	got := PrepareWholeArticle("", "body only", 5)
	if got != "body only" {
		t.Fatalf("expected untouched body for empty title, got %q", got)
	}
}
