package vectorindex

import (
	"encoding/gob"
	"math"
	"os"
	"sort"
	"sync"
)

type entry struct {
	Vector []float32
	Meta   Document
}

// Memory is an exact-scan, in-memory cosine similarity index, grounded on
// the teacher's memory_vector.go sync.RWMutex-guarded map. This is the
// default backend: content stays in the Article Store, keeping this
// structure's footprint proportional to vector count x dimension only.
type Memory struct {
	mu      sync.RWMutex
	vectors map[string]entry
}

// NewMemory returns an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{vectors: make(map[string]entry)}
}

func (m *Memory) Upsert(docID string, vector []float32, meta Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(vector))
	copy(cp, vector)
	meta.DocID = docID
	m.vectors[docID] = entry{Vector: cp, Meta: meta}
	return nil
}

func (m *Memory) Delete(docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, docID)
	return nil
}

func (m *Memory) Search(vector []float32, k int) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	qnorm := norm(vector)
	out := make([]Result, 0, len(m.vectors))
	for id, e := range m.vectors {
		out = append(out, Result{
			DocID:    id,
			Score:    cosine(vector, e.Vector, qnorm),
			Metadata: e.Meta,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Save gob-encodes the full index to path.
func (m *Memory) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(m.vectors)
}

// Load replaces the index's contents with the gob-encoded data at path.
func (m *Memory) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var loaded map[string]entry
	if err := gob.NewDecoder(f).Decode(&loaded); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = loaded
	return nil
}

func norm(a []float32) float64 {
	var s float64
	for _, x := range a {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32, anorm float64) float64 {
	if anorm == 0 {
		anorm = norm(a)
	}
	bnorm := norm(b)
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return dot(a, b) / (anorm * bnorm)
}

var _ Index = (*Memory)(nil)
