package metric

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestDotSimilarity(t *testing.T) {
	m := For(Dot)
	a := []float32{1, 0, 1, 1}
	q := []float32{0, 1, 1.1, 1}
	got := m.Similarity(a, q)
	if !approxEqual(got, 2.1, 1e-5) {
		t.Errorf("Dot similarity = %v, want ~2.1", got)
	}
}

func TestCosinePreprocessNormalizes(t *testing.T) {
	m := For(Cosine)
	v, ok := m.Preprocess([]float32{3, 4, 0, 0})
	if !ok {
		t.Fatal("Preprocess should succeed for non-zero vector")
	}
	var sumSq float32
	for _, x := range v {
		sumSq += x * x
	}
	if !approxEqual(sumSq, 1.0, 1e-4) {
		t.Errorf("normalized vector squared-norm = %v, want 1.0", sumSq)
	}
}

func TestCosinePreprocessRejectsZeroVector(t *testing.T) {
	m := For(Cosine)
	if _, ok := m.Preprocess([]float32{0, 0, 0, 0}); ok {
		t.Fatal("Preprocess should reject zero vector")
	}
}

func TestEuclidSimilarityIsNegatedSquaredDistance(t *testing.T) {
	m := For(Euclid)
	a := []float32{0, 0}
	b := []float32{3, 4}
	got := m.Similarity(a, b)
	if !approxEqual(got, -25, 1e-4) {
		t.Errorf("Euclid similarity = %v, want -25", got)
	}
	// Identical vectors score highest (0).
	same := m.Similarity(a, a)
	if same <= got {
		t.Errorf("identical vectors should score higher than distant ones: %v <= %v", same, got)
	}
}

func TestParseDistanceRoundTrip(t *testing.T) {
	for _, d := range []Distance{Cosine, Euclid, Dot} {
		got, err := ParseDistance(d.String())
		if err != nil {
			t.Fatalf("ParseDistance(%q): %v", d.String(), err)
		}
		if got != d {
			t.Errorf("ParseDistance(%q) = %v, want %v", d.String(), got, d)
		}
	}
	if _, err := ParseDistance("manhattan"); err == nil {
		t.Fatal("expected error for unknown distance")
	}
}

func TestSqrtViaMath(t *testing.T) {
	// Sanity check that Preprocess's normalization matches math.Sqrt.
	m := For(Cosine)
	v, _ := m.Preprocess([]float32{1, 1, 1, 1})
	want := float32(1 / math.Sqrt(4))
	if !approxEqual(v[0], want, 1e-6) {
		t.Errorf("v[0] = %v, want %v", v[0], want)
	}
}
