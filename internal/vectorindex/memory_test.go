package vectorindex

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemory_UpsertAndSearch(t *testing.T) {
	m := NewMemory()
	m.Upsert("a_1", []float32{1, 0, 0}, Document{ArticleID: 1, Title: "A"})
	m.Upsert("a_2", []float32{0, 1, 0}, Document{ArticleID: 2, Title: "B"})
	results, err := m.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].DocID != "a_1" {
		t.Fatalf("expected a_1 to rank first, got %v", results)
	}
	if results[0].Score < 0.99 {
		t.Fatalf("expected near-identical vector to score near 1, got %v", results[0].Score)
	}
}

func TestMemory_UpsertIsIdempotentReplace(t *testing.T) {
	m := NewMemory()
	m.Upsert("a_1", []float32{1, 0}, Document{Title: "old"})
	m.Upsert("a_1", []float32{0, 1}, Document{Title: "new"})
	if m.Count() != 1 {
		t.Fatalf("expected a single stored document, got %d", m.Count())
	}
	results, _ := m.Search([]float32{0, 1}, 1)
	if results[0].Metadata.Title != "new" {
		t.Fatalf("expected upsert to replace metadata, got %+v", results[0].Metadata)
	}
}

func TestMemory_DeleteIsIdempotent(t *testing.T) {
	m := NewMemory()
	m.Upsert("a_1", []float32{1, 0}, Document{})
	if err := m.Delete("a_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Delete("a_1"); err != nil {
		t.Fatalf("second delete should also be a no-op, got error: %v", err)
	}
	if m.Count() != 0 {
		t.Fatalf("expected empty index after delete")
	}
}

func TestMemory_SaveLoadRoundTrip(t *testing.T) {
	m := NewMemory()
	m.Upsert("a_1", []float32{0.5, 0.5, 0.5}, Document{ArticleID: 1, Title: "Permanent Revolution"})
	m.Upsert("c_1_0", []float32{0.1, 0.2, 0.3}, Document{ArticleID: 1, IsChunk: true, ChunkIndex: 0})

	path := filepath.Join(t.TempDir(), "index.gob")
	if err := m.Save(path); err != nil {
		t.Fatalf("unexpected error saving: %v", err)
	}

	loaded := NewMemory()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("unexpected error loading: %v", err)
	}
	if loaded.Count() != m.Count() {
		t.Fatalf("expected round-tripped count %d, got %d", m.Count(), loaded.Count())
	}
	results, _ := loaded.Search([]float32{0.5, 0.5, 0.5}, 1)
	if results[0].DocID != "a_1" || results[0].Metadata.Title != "Permanent Revolution" {
		t.Fatalf("unexpected round-tripped document: %+v", results[0])
	}
}

func TestMemory_LoadMissingFileErrors(t *testing.T) {
	m := NewMemory()
	if err := m.Load(filepath.Join(os.TempDir(), "does-not-exist-vectorindex.gob")); err == nil {
		t.Fatalf("expected error loading missing file")
	}
}
