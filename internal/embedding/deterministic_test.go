package embedding

import (
	"context"
	"math"
	"testing"
)

func TestDeterministic_SameInputSameOutput(t *testing.T) {
	d := NewDeterministic(32, false, 0)
	a, err := d.EmbedBatch(context.Background(), []string{"dialectical materialism"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := d.EmbedBatch(context.Background(), []string{"dialectical materialism"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("expected deterministic output, differs at %d: %v vs %v", i, a[0][i], b[0][i])
		}
	}
}

func TestDeterministic_DifferentInputDifferentOutput(t *testing.T) {
	d := NewDeterministic(32, false, 0)
	a, _ := d.EmbedBatch(context.Background(), []string{"permanent revolution"})
	b, _ := d.EmbedBatch(context.Background(), []string{"labour theory of value"})
	same := true
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("expected different embeddings for different text")
	}
}

func TestDeterministic_Normalized(t *testing.T) {
	d := NewDeterministic(32, true, 0)
	v, _ := d.EmbedBatch(context.Background(), []string{"some text to embed for normalization"})
	var sum float64
	for _, x := range v[0] {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm < 0.99 || norm > 1.01 {
		t.Fatalf("expected unit norm, got %v", norm)
	}
}

func TestDeterministic_DimensionDefaultsWhenNonPositive(t *testing.T) {
	d := NewDeterministic(0, false, 0)
	if d.Dimension() != DefaultDimension {
		t.Fatalf("expected default dimension %d, got %d", DefaultDimension, d.Dimension())
	}
}

func TestDeterministic_EmptyStringYieldsZeroVector(t *testing.T) {
	d := NewDeterministic(16, false, 0)
	v, _ := d.EmbedBatch(context.Background(), []string{""})
	for _, x := range v[0] {
		if x != 0 {
			t.Fatalf("expected zero vector for empty input, got %v", v[0])
		}
	}
}
