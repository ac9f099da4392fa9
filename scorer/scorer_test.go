package scorer

import (
	"reflect"
	"testing"

	"vecstore/chunked"
	"vecstore/deleted"
	"vecstore/metric"
)

func buildS1() (*chunked.Vectors, *deleted.Mask) {
	vecs := [][]float32{
		{1, 0, 1, 1},
		{1, 0, 1, 0},
		{1, 1, 1, 1},
		{1, 1, 0, 1},
		{1, 0, 0, 0},
	}
	cv := chunked.New(4)
	mask := deleted.New()
	for _, v := range vecs {
		id := cv.Push(v)
		mask.Set(int(id), false)
	}
	return cv, mask
}

func TestScorePointsTopKDot(t *testing.T) {
	cv, mask := buildS1()
	s := New(cv, mask, metric.For(metric.Dot), nil)
	q := []float32{0, 1, 1.1, 1}

	results := s.ScoreAll(q, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Idx != 2 {
		t.Fatalf("top idx = %d, want 2", results[0].Idx)
	}
	if got := results[0].Score; got < 3.09 || got > 3.11 {
		t.Errorf("top score = %v, want ~3.1", got)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in non-increasing score order: %v", results)
		}
	}
}

func TestScorePointsAfterDelete(t *testing.T) {
	cv, mask := buildS1()
	s := New(cv, mask, metric.For(metric.Dot), nil)
	q := []float32{0, 1, 1.1, 1}

	mask.Set(2, true)
	results := s.ScoreAll(q, 2)
	if len(results) == 0 {
		t.Fatal("expected results after delete")
	}
	if results[0].Idx == 2 {
		t.Fatal("deleted id 2 should not appear as top result")
	}
	for _, r := range results {
		if r.Idx == 2 {
			t.Fatal("deleted id 2 should not appear at all")
		}
	}
}

func TestRawScorerIsStableAcrossCalls(t *testing.T) {
	cv, mask := buildS1()
	s := New(cv, mask, metric.For(metric.Dot), nil)
	raw := s.RawScorer([]float32{0, 1, 1.1, 1})

	points := []uint32{0, 1, 2, 3, 4}
	out1 := make([]ScoredPoint, 5)
	out2 := make([]ScoredPoint, 5)
	n1 := raw.ScorePoints(points, out1)
	n2 := raw.ScorePoints(points, out2)
	if n1 != n2 {
		t.Fatalf("ScorePoints returned different counts: %d vs %d", n1, n2)
	}
	if !reflect.DeepEqual(out1[:n1], out2[:n2]) {
		t.Fatalf("ScorePoints not stable across calls: %v vs %v", out1[:n1], out2[:n2])
	}
}

func TestScorePointsStopsWhenOutFull(t *testing.T) {
	cv, mask := buildS1()
	s := New(cv, mask, metric.For(metric.Dot), nil)
	raw := s.RawScorer([]float32{1, 1, 1, 1})

	out := make([]ScoredPoint, 2)
	n := raw.ScorePoints([]uint32{0, 1, 2, 3, 4}, out)
	if n != 2 {
		t.Fatalf("ScorePoints wrote %d entries, want 2 (out capacity)", n)
	}
}

func TestCheckPointRespectsRangeAndMask(t *testing.T) {
	cv, mask := buildS1()
	s := New(cv, mask, metric.For(metric.Dot), nil)
	raw := s.RawScorer([]float32{1, 0, 0, 0})

	if !raw.CheckPoint(0) {
		t.Error("CheckPoint(0) should be true")
	}
	if raw.CheckPoint(100) {
		t.Error("CheckPoint(100) should be false (out of range)")
	}
	mask.Set(0, true)
	if raw.CheckPoint(0) {
		t.Error("CheckPoint(0) should be false after delete")
	}
}

type fakeQuantized struct{ n int }

func (fakeQuantized) ScoreQuery(query []float32, id uint32) float32 { return 1 }
func (fakeQuantized) ScoreInternal(a, b uint32) float32             { return 1 }
func (f fakeQuantized) Len() int                                    { return f.n }

func TestScoreQuantizedPointsFallsBackWhenAbsent(t *testing.T) {
	cv, mask := buildS1()
	s := New(cv, mask, metric.For(metric.Dot), nil)
	q := []float32{0, 1, 1.1, 1}

	withFallback := s.ScoreQuantizedPoints(q, []uint32{0, 1, 2, 3, 4}, 2)
	exact := s.ScorePoints(q, []uint32{0, 1, 2, 3, 4}, 2)
	if !reflect.DeepEqual(withFallback, exact) {
		t.Fatalf("fallback result %v != exact result %v", withFallback, exact)
	}
}

func TestScoreQuantizedPointsUsesIndexWhenPresent(t *testing.T) {
	cv, mask := buildS1()
	s := New(cv, mask, metric.For(metric.Dot), fakeQuantized{n: 5})
	q := []float32{0, 1, 1.1, 1}

	results := s.ScoreQuantizedPoints(q, []uint32{0, 1, 2}, 3)
	for _, r := range results {
		if r.Score != 1 {
			t.Errorf("expected fake quantized score 1, got %v", r.Score)
		}
	}
}

func TestQuantizedCheckPointExcludesPointsAddedAfterIndexBuilt(t *testing.T) {
	cv, mask := buildS1()
	// fakeQuantized covers only ids [0,3) — as if it were built before ids
	// 3 and 4 were appended to storage.
	s := New(cv, mask, metric.For(metric.Dot), fakeQuantized{n: 3})
	q := []float32{0, 1, 1.1, 1}

	qs, ok := s.QuantizedRawScorer(q)
	if !ok {
		t.Fatal("expected quantized scorer to be present")
	}
	if qs.CheckPoint(2) != true {
		t.Error("CheckPoint(2) should be true: within both vectors and index range")
	}
	if qs.CheckPoint(3) != false {
		t.Error("CheckPoint(3) should be false: beyond the quantized index's range")
	}

	results := s.ScoreQuantizedPoints(q, []uint32{0, 1, 2, 3, 4}, 5)
	for _, r := range results {
		if r.Idx >= 3 {
			t.Errorf("result %+v should have been excluded (beyond quantized index range)", r)
		}
	}
}
