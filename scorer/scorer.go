// Package scorer implements RawScorer and the Scorer facade (C6, C7 in
// SPEC_FULL.md): metric-specialized, query-bound similarity scoring over a
// chunked.Vectors array, respecting a deleted.Mask, with a bounded max-heap
// top-k aggregation.
package scorer

import (
	"container/heap"

	"vecstore/chunked"
	"vecstore/deleted"
	"vecstore/metric"
)

// ScoredPoint is one result of a scoring call.
type ScoredPoint struct {
	Idx   uint32
	Score float32
}

// QuantizedIndex is the minimal surface a quantized backend must expose to
// be used by a Scorer in place of the exact vectors (SPEC_FULL.md §4.7,
// §4.9 domain-stack wiring: backed by quantize.ScalarQuantizer).
type QuantizedIndex interface {
	// ScoreQuery returns the quantized similarity between the preprocessed
	// query and point id. Assumes id is in range; deletion is applied by
	// the caller.
	ScoreQuery(query []float32, id uint32) float32
	// ScoreInternal returns the quantized similarity between two stored
	// points.
	ScoreInternal(a, b uint32) float32
	// Len reports how many ids the index has codes for. A point added to
	// the storage after the index was built or loaded is out of its range
	// even though it is within chunked.Vectors' range.
	Len() int
}

// RawScorer is a query-bound scorer over a fixed vector set (C6). The
// query vector passed to New has already been preprocessed by the caller
// (SPEC_FULL.md §4.7: "raw score functions do not re-preprocess").
type RawScorer struct {
	vectors *chunked.Vectors
	mask    *deleted.Mask
	metric  metric.Metric
	query   []float32
}

// NewRawScorer constructs a RawScorer for the given preprocessed query over
// vectors/mask, scoring with m.
func NewRawScorer(query []float32, vectors *chunked.Vectors, mask *deleted.Mask, m metric.Metric) *RawScorer {
	return &RawScorer{vectors: vectors, mask: mask, metric: m, query: query}
}

// CheckPoint reports whether id is live and in range.
func (s *RawScorer) CheckPoint(id uint32) bool {
	return int(id) < s.vectors.Len() && !s.mask.Get(int(id))
}

// ScorePoint scores id against the bound query. Assumes id is live; callers
// must bounds-check with CheckPoint first (SPEC_FULL.md §4.7).
func (s *RawScorer) ScorePoint(id uint32) float32 {
	return s.metric.Similarity(s.query, s.vectors.Get(id))
}

// ScoreInternal scores two stored points directly, bypassing the bound
// query.
func (s *RawScorer) ScoreInternal(a, b uint32) float32 {
	return s.metric.Similarity(s.vectors.Get(a), s.vectors.Get(b))
}

// ScorePoints iterates points, skips deleted or out-of-range ids, and
// writes ScoredPoint entries into out sequentially until out is full or
// points is exhausted. Returns the count written.
func (s *RawScorer) ScorePoints(points []uint32, out []ScoredPoint) int {
	n := 0
	for _, id := range points {
		if n >= len(out) {
			break
		}
		if !s.CheckPoint(id) {
			continue
		}
		out[n] = ScoredPoint{Idx: id, Score: s.ScorePoint(id)}
		n++
	}
	return n
}

// Scorer is the per-storage facade (C7): metric dispatch, top-k
// aggregation, and quantized/exact selection.
type Scorer struct {
	vectors   *chunked.Vectors
	mask      *deleted.Mask
	metric    metric.Metric
	quantized QuantizedIndex // nil if no quantized index is loaded
}

// New constructs a Scorer dispatched to m, over vectors/mask. quantized may
// be nil.
func New(vectors *chunked.Vectors, mask *deleted.Mask, m metric.Metric, quantized QuantizedIndex) *Scorer {
	return &Scorer{vectors: vectors, mask: mask, metric: m, quantized: quantized}
}

// preprocessQuery applies the scorer's metric preprocessing to a raw query
// vector. Cosine normalizes; Euclid and Dot are identity (SPEC_FULL.md
// §4.7). Returns ok=false if the query cannot be preprocessed (e.g. a zero
// vector under Cosine).
func (s *Scorer) preprocessQuery(query []float32) ([]float32, bool) {
	return s.metric.Preprocess(query)
}

// RawScorer returns an exact RawScorer bound to query.
func (s *Scorer) RawScorer(query []float32) *RawScorer {
	q, ok := s.preprocessQuery(query)
	if !ok {
		q = query // zero vector: scoring yields 0.0 by convention, SPEC_FULL.md §4.7
	}
	return NewRawScorer(q, s.vectors, s.mask, s.metric)
}

// QuantizedRawScorer returns a RawScorer-shaped quantized scorer, or false
// if no quantized index is present.
func (s *Scorer) QuantizedRawScorer(query []float32) (*QuantizedRawScorer, bool) {
	if s.quantized == nil {
		return nil, false
	}
	q, ok := s.preprocessQuery(query)
	if !ok {
		q = query
	}
	return &QuantizedRawScorer{vectors: s.vectors, mask: s.mask, index: s.quantized, query: q}, true
}

// QuantizedRawScorer mirrors RawScorer's contract but reads through a
// QuantizedIndex instead of exact vectors; shares the same deletion mask
// (SPEC_FULL.md §4.7 "quantized_raw_scorer").
type QuantizedRawScorer struct {
	vectors *chunked.Vectors
	mask    *deleted.Mask
	index   QuantizedIndex
	query   []float32
}

func (s *QuantizedRawScorer) CheckPoint(id uint32) bool {
	return int(id) < s.vectors.Len() && int(id) < s.index.Len() && !s.mask.Get(int(id))
}

func (s *QuantizedRawScorer) ScorePoint(id uint32) float32 {
	return s.index.ScoreQuery(s.query, id)
}

func (s *QuantizedRawScorer) ScoreInternal(a, b uint32) float32 {
	return s.index.ScoreInternal(a, b)
}

func (s *QuantizedRawScorer) ScorePoints(points []uint32, out []ScoredPoint) int {
	n := 0
	for _, id := range points {
		if n >= len(out) {
			break
		}
		if !s.CheckPoint(id) {
			continue
		}
		out[n] = ScoredPoint{Idx: id, Score: s.ScorePoint(id)}
		n++
	}
	return n
}

// ScorePoints scores every id in ids against query using the exact path
// and returns the top results, highest score first, ties broken by lower
// idx. Result length is at most top.
func (s *Scorer) ScorePoints(query []float32, ids []uint32, top int) []ScoredPoint {
	raw := s.RawScorer(query)
	return topK(ids, top, raw.CheckPoint, raw.ScorePoint)
}

// ScoreQuantizedPoints behaves like ScorePoints but scores through the
// quantized index when one is present, falling back to the exact path
// otherwise (SPEC_FULL.md §4.7).
func (s *Scorer) ScoreQuantizedPoints(query []float32, ids []uint32, top int) []ScoredPoint {
	qs, ok := s.QuantizedRawScorer(query)
	if !ok {
		return s.ScorePoints(query, ids, top)
	}
	return topK(ids, top, qs.CheckPoint, qs.ScorePoint)
}

// ScoreAll is equivalent to ScorePoints(query, iter_ids(), top).
func (s *Scorer) ScoreAll(query []float32, top int) []ScoredPoint {
	ids := make([]uint32, 0, s.vectors.Len())
	for id := uint32(0); int(id) < s.vectors.Len(); id++ {
		if !s.mask.Get(int(id)) {
			ids = append(ids, id)
		}
	}
	return s.ScorePoints(query, ids, top)
}

// heapItem is one entry in the bounded max-heap used by topK, implemented
// as a min-heap over score so the smallest of the current top-k sits at
// the root and is evicted first.
type heapItem struct {
	idx   uint32
	score float32
}

type minHeap []heapItem

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	// Among equal scores, keep the smaller idx "more valuable" (less
	// likely to be evicted), matching the tie-break-by-lower-idx rule.
	return h[i].idx > h[j].idx
}
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topK runs a bounded max-heap top-k selection over ids, skipping ids for
// which check returns false. Results are sorted highest-score-first with
// ties broken by lower idx.
func topK(ids []uint32, top int, check func(uint32) bool, score func(uint32) float32) []ScoredPoint {
	if top <= 0 {
		return nil
	}
	h := make(minHeap, 0, top)
	for _, id := range ids {
		if !check(id) {
			continue
		}
		item := heapItem{idx: id, score: score(id)}
		if len(h) < top {
			heap.Push(&h, item)
			continue
		}
		// Replace the current minimum (by the same score/idx ordering the
		// heap itself uses) if item is strictly better.
		if betterThan(item, h[0]) {
			h[0] = item
			heap.Fix(&h, 0)
		}
	}
	out := make([]ScoredPoint, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		item := heap.Pop(&h).(heapItem)
		out[i] = ScoredPoint{Idx: item.idx, Score: item.score}
	}
	return out
}

// betterThan reports whether a should be kept over b when only one of the
// two can remain in a size-limited top-k: higher score wins; on a tie,
// lower idx wins.
func betterThan(a, b heapItem) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.idx < b.idx
}
