// Package quantize implements the optional quantized scoring backend
// (the "QuantizedIndex, C5-owned handle" in SPEC_FULL.md's data model):
// per-dimension scalar quantization to uint8 codes, built from the live+
// deleted vectors of a storage and persisted under a storage-provided
// directory.
//
// The quantizer is deliberately metric-agnostic: it dequantizes and defers
// to the same metric.Metric the exact scorer uses, so quantized scores stay
// within the bounded error of the exact scores regardless of Distance
// (SPEC_FULL.md §8, "Quantized-exact agreement").
package quantize

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	sqlitevec "github.com/nicexipi/sqlite-vec"

	"vecstore/internal/errlog"
	"vecstore/metric"
)

const (
	codesFileName  = "quantize.codes"
	rangesFileName = "quantize.ranges"
)

// Config mirrors the qdrant-style "Scalar{type, quantile?, always_ram?}"
// variant record (spec.md §6): fully opaque to the storage beyond being
// passed through to Build.
type Config struct {
	// Quantile clips the per-dimension min/max range to [quantile, 1-quantile]
	// before scaling, reducing outlier sensitivity. Zero (or any value <= 0
	// or >= 0.5) disables clipping and uses the raw min/max.
	Quantile float64
	// AlwaysRAM requests the quantized codes stay memory-resident rather
	// than memory-mapped from disk. Not read by Build or Load — both
	// already keep codes in a Go slice.
	AlwaysRAM bool
}

// ScalarQuantizer is a per-dimension scalar quantization of a fixed-size
// vector set to uint8 codes, dequantized at score time.
type ScalarQuantizer struct {
	dim    int
	min    []float32
	scale  []float32
	codes  [][]uint8 // codes[id] is nil for ids never built (out of range)
	metric metric.Metric
	dir    string
}

// Build quantizes every id in ids (typically live+deleted, per
// SPEC_FULL.md: "the quantizer sees all ids; deletion is applied at
// scoring time") by reading vectors through get, and persists the result
// under dir.
func Build(dir string, cfg Config, dim int, m metric.Metric, ids []uint32, get func(id uint32) []float32) (*ScalarQuantizer, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("quantize: cannot build from zero vectors")
	}
	minV := make([]float32, dim)
	maxV := make([]float32, dim)
	for d := 0; d < dim; d++ {
		minV[d] = float32(math.Inf(1))
		maxV[d] = float32(math.Inf(-1))
	}

	columns := make([][]float32, dim)
	for d := range columns {
		columns[d] = make([]float32, 0, len(ids))
	}
	for _, id := range ids {
		v := get(id)
		for d := 0; d < dim; d++ {
			columns[d] = append(columns[d], v[d])
			if v[d] < minV[d] {
				minV[d] = v[d]
			}
			if v[d] > maxV[d] {
				maxV[d] = v[d]
			}
		}
	}

	if cfg.Quantile > 0 && cfg.Quantile < 0.5 {
		for d := 0; d < dim; d++ {
			sorted := append([]float32(nil), columns[d]...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			lo := int(cfg.Quantile * float64(len(sorted)))
			hi := len(sorted) - 1 - lo
			if hi <= lo {
				continue
			}
			minV[d] = sorted[lo]
			maxV[d] = sorted[hi]
		}
	}

	scale := make([]float32, dim)
	for d := 0; d < dim; d++ {
		span := maxV[d] - minV[d]
		if span <= 0 {
			scale[d] = 1
		} else {
			scale[d] = span / 255
		}
	}

	q := &ScalarQuantizer{dim: dim, min: minV, scale: scale, metric: m, dir: dir}
	maxID := uint32(0)
	for _, id := range ids {
		if id > maxID {
			maxID = id
		}
	}
	q.codes = make([][]uint8, maxID+1)
	for _, id := range ids {
		q.codes[id] = q.encode(get(id))
	}

	q.crossCheckCosine(ids, get)

	if err := q.persist(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *ScalarQuantizer) encode(v []float32) []uint8 {
	code := make([]uint8, q.dim)
	for d := 0; d < q.dim; d++ {
		x := (v[d] - q.min[d]) / q.scale[d]
		if x < 0 {
			x = 0
		}
		if x > 255 {
			x = 255
		}
		code[d] = uint8(x + 0.5)
	}
	return code
}

func (q *ScalarQuantizer) decode(code []uint8) []float32 {
	out := make([]float32, q.dim)
	for d := 0; d < q.dim; d++ {
		out[d] = q.min[d] + float32(code[d])*q.scale[d]
	}
	return out
}

// crossCheckCosine is a build-time sanity check, run for every metric: using
// sqlite-vec's independently-implemented CosineSimilarity (the vendored
// module's own reference path), it compares the cosine of the first two
// ids' original vectors with the cosine of their dequantized codes and logs
// a warning if the two differ by more than 0.15. It never fails Build — an out-of-tolerance result
// just means the caller's quantized scorer will also disagree with the
// exact scorer at query time, which the storage's own agreement tests
// catch.
func (q *ScalarQuantizer) crossCheckCosine(ids []uint32, get func(id uint32) []float32) {
	if len(ids) < 2 {
		return
	}
	a, b := get(ids[0]), get(ids[1])
	da, db := toFloat64(q.decode(q.codes[ids[0]])), toFloat64(q.decode(q.codes[ids[1]]))
	want := sqlitevec.CosineSimilarity(toFloat64(a), toFloat64(b))
	got := sqlitevec.CosineSimilarity(da, db)
	if diff := math.Abs(want - got); diff > 0.15 {
		errlog.Logf("quantize: scalar quantization cosine cross-check exceeded tolerance: |%.4f - %.4f| = %.4f", want, got, diff)
	}
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// ScoreQuery implements scorer.QuantizedIndex: dequantizes the stored
// point and defers to the bound metric for similarity against query.
// query must already be preprocessed the same way the exact scorer's
// query is (SPEC_FULL.md §4.7).
func (q *ScalarQuantizer) ScoreQuery(query []float32, id uint32) float32 {
	return q.metric.Similarity(query, q.decode(q.codes[id]))
}

// ScoreInternal dequantizes both stored points and scores them directly.
func (q *ScalarQuantizer) ScoreInternal(a, b uint32) float32 {
	return q.metric.Similarity(q.decode(q.codes[a]), q.decode(q.codes[b]))
}

// Len reports how many ids this quantizer has codes for. A point added to
// the storage after the quantizer was built or loaded has no entry and
// falls outside this range (SPEC_FULL.md §4.7: the quantized path is only
// ever consulted for ids the quantizer actually covers).
func (q *ScalarQuantizer) Len() int {
	return len(q.codes)
}

// Files returns the paths of the files this quantizer persisted under its
// directory (SPEC_FULL.md §4: mirrors the Rust source's
// `quantized_vectors.files()`).
func (q *ScalarQuantizer) Files() []string {
	return []string{
		filepath.Join(q.dir, codesFileName),
		filepath.Join(q.dir, rangesFileName),
	}
}

// FilesExist probes whether a quantized index was already persisted under
// dir, so a caller can skip rebuilding and call Load instead
// (SPEC_FULL.md §4, "check_exists probe before load_quantization").
func FilesExist(dir string) bool {
	for _, name := range []string{codesFileName, rangesFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

func (q *ScalarQuantizer) persist() error {
	if err := os.MkdirAll(q.dir, 0o755); err != nil {
		return fmt.Errorf("quantize: failed to create directory %s: %w", q.dir, err)
	}

	rangesPath := filepath.Join(q.dir, rangesFileName)
	rangeValues := make([]float64, 0, 2*q.dim)
	for d := 0; d < q.dim; d++ {
		rangeValues = append(rangeValues, float64(q.min[d]), float64(q.scale[d]))
	}
	if err := os.WriteFile(rangesPath, sqlitevec.SerializeVector(rangeValues), 0o644); err != nil {
		return fmt.Errorf("quantize: failed to write %s: %w", rangesPath, err)
	}

	codesPath := filepath.Join(q.dir, codesFileName)
	buf := make([]byte, 4+len(q.codes)*q.dim)
	binary.LittleEndian.PutUint32(buf[:4], uint32(q.dim))
	for i, code := range q.codes {
		copy(buf[4+i*q.dim:], code)
	}
	if err := os.WriteFile(codesPath, buf, 0o644); err != nil {
		return fmt.Errorf("quantize: failed to write %s: %w", codesPath, err)
	}
	return nil
}

// Load reconstructs a ScalarQuantizer previously persisted under dir by
// Build, bound to metric m for subsequent scoring.
func Load(dir string, m metric.Metric) (*ScalarQuantizer, error) {
	rangesPath := filepath.Join(dir, rangesFileName)
	rangesBytes, err := os.ReadFile(rangesPath)
	if err != nil {
		return nil, fmt.Errorf("quantize: failed to read %s: %w", rangesPath, err)
	}
	rangeValues := sqlitevec.DeserializeVector(rangesBytes)
	dim := len(rangeValues) / 2
	minV := make([]float32, dim)
	scale := make([]float32, dim)
	for d := 0; d < dim; d++ {
		minV[d] = float32(rangeValues[2*d])
		scale[d] = float32(rangeValues[2*d+1])
	}

	codesPath := filepath.Join(dir, codesFileName)
	codesBytes, err := os.ReadFile(codesPath)
	if err != nil {
		return nil, fmt.Errorf("quantize: failed to read %s: %w", codesPath, err)
	}
	if len(codesBytes) < 4 {
		return nil, fmt.Errorf("quantize: codes file %s is truncated", codesPath)
	}
	fileDim := int(binary.LittleEndian.Uint32(codesBytes[:4]))
	if fileDim != dim {
		return nil, fmt.Errorf("quantize: dimension mismatch between %s (%d) and %s (%d)", rangesPath, dim, codesPath, fileDim)
	}
	body := codesBytes[4:]
	if dim == 0 || len(body)%dim != 0 {
		return nil, fmt.Errorf("quantize: codes file %s has invalid length %d for dim %d", codesPath, len(body), dim)
	}
	n := len(body) / dim
	codes := make([][]uint8, n)
	for i := 0; i < n; i++ {
		codes[i] = append([]uint8(nil), body[i*dim:(i+1)*dim]...)
	}

	return &ScalarQuantizer{dim: dim, min: minV, scale: scale, codes: codes, metric: m, dir: dir}, nil
}
