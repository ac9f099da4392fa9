// Package vecstore implements the public facade over the dense vector
// storage core: VectorStorage (C5) and the load path (C8) from
// SPEC_FULL.md, bridging the chunked vector array (chunked), the tombstone
// mask (deleted), the durable column (column), the on-disk record codec
// (record), and the metric-dispatched scorer (scorer).
//
// Callers are responsible for the single-writer/many-reader exclusion
// discipline described in SPEC_FULL.md §5 — Storage itself applies no
// locking.
package vecstore

import (
	"errors"
	"fmt"

	"vecstore/chunked"
	"vecstore/column"
	"vecstore/deleted"
	"vecstore/internal/errlog"
	"vecstore/metric"
	"vecstore/quantize"
	"vecstore/record"
	"vecstore/scorer"
)

// ErrCancelled is returned by UpdateFrom when the caller's stop flag is set
// before the transfer completes (SPEC_FULL.md §5 "Suspension").
var ErrCancelled = errors.New("vecstore: update cancelled")

// TransferStats is returned by UpdateFrom alongside the range of newly
// assigned ids (SPEC_FULL.md §4 "Supplemented features").
type TransferStats struct {
	Copied    int
	Cancelled bool
}

// Storage is the public facade (C5): VectorStorage. Must not be shared
// across goroutines without external exclusion (SPEC_FULL.md §5).
type Storage struct {
	dim      int
	distance metric.Distance
	metric   metric.Metric
	col      *column.Column

	vectors      *chunked.Vectors
	mask         *deleted.Mask
	deletedCount int

	quantized     *quantize.ScalarQuantizer
	quantizedPath string
}

// Open implements open_simple_vector_storage (C8): opens the column, runs
// the load path, and constructs the facade.
func Open(dbPath, columnName string, dim int, distance metric.Distance) (*Storage, error) {
	col, err := column.Open(dbPath, columnName)
	if err != nil {
		return nil, fmt.Errorf("vecstore: open column %s: %w", columnName, err)
	}

	s := &Storage{
		dim:      dim,
		distance: distance,
		metric:   metric.For(distance),
		col:      col,
		vectors:  chunked.New(dim),
		mask:     deleted.New(),
	}

	if err := s.load(); err != nil {
		col.Close()
		errlog.Logf("vecstore: load path failed for column %s: %v", columnName, err)
		return nil, fmt.Errorf("vecstore: load path failed: %w", err)
	}
	return s, nil
}

// load implements the load path (C8): scan C3 in key order, reconstruct
// C1/C2. Padding slots are never inferred here — the write path guarantees
// every id <= max has a persisted record (SPEC_FULL.md §4 policy (a)).
func (s *Storage) load() error {
	return s.col.Iter(func(key, value []byte) error {
		id, err := record.DecodeKey(key)
		if err != nil {
			return fmt.Errorf("vecstore: decode key: %w", err)
		}
		rec, err := record.Decode(value)
		if err != nil {
			return fmt.Errorf("vecstore: decode record %d: %w", id, err)
		}
		if len(rec.Vector) != s.dim && !(len(rec.Vector) == 0 && rec.Deleted) {
			return fmt.Errorf("vecstore: record %d has dimension %d, want %d", id, len(rec.Vector), s.dim)
		}

		vec := rec.Vector
		if len(vec) == 0 {
			vec = make([]float32, s.dim)
		}
		s.vectors.Insert(id, vec)
		s.mask.Set(int(id), rec.Deleted)
		if rec.Deleted {
			s.deletedCount++
		}
		return nil
	})
}

// VectorDim returns dim.
func (s *Storage) VectorDim() int { return s.dim }

// VectorCount returns the number of live (non-deleted) vectors.
func (s *Storage) VectorCount() int { return s.vectors.Len() - s.deletedCount }

// TotalVectorCount returns the total number of slots, including tombstones.
func (s *Storage) TotalVectorCount() int { return s.vectors.Len() }

// DeletedCount returns the tombstone counter.
func (s *Storage) DeletedCount() int { return s.deletedCount }

// GetVector returns a fresh copy of the vector at id, or (nil, false) if
// id is out of range or deleted.
func (s *Storage) GetVector(id uint32) ([]float32, bool) {
	if int(id) >= s.vectors.Len() || s.mask.Get(int(id)) {
		return nil, false
	}
	src := s.vectors.Get(id)
	out := make([]float32, len(src))
	copy(out, src)
	return out, true
}

// PutVector appends v as a new live slot, persists it, and returns its id.
func (s *Storage) PutVector(v []float32) (uint32, error) {
	if len(v) != s.dim {
		return 0, fmt.Errorf("vecstore: vector has dimension %d, want %d", len(v), s.dim)
	}
	id := s.vectors.Push(v)
	s.mask.Set(int(id), false)
	if err := s.persist(id, record.StoredRecord{Deleted: false, Vector: v}); err != nil {
		errlog.Logf("vecstore: put_vector(%d) persist failed: %v", id, err)
		return 0, err
	}
	return id, nil
}

// InsertVector places v at id, growing storage so Len() >= id+1.
// Intermediate new slots are marked deleted and persisted with an empty
// vector (SPEC_FULL.md §4 policy (a)); the target slot is marked live.
func (s *Storage) InsertVector(id uint32, v []float32) error {
	if len(v) != s.dim {
		return fmt.Errorf("vecstore: vector has dimension %d, want %d", len(v), s.dim)
	}
	prevLen := s.vectors.Len()
	s.vectors.Insert(id, v)

	for pad := prevLen; pad < int(id); pad++ {
		s.mask.Set(pad, true)
		s.deletedCount++
		if err := s.persist(uint32(pad), record.StoredRecord{Deleted: true, Vector: nil}); err != nil {
			errlog.Logf("vecstore: insert_vector(%d) padding persist failed at %d: %v", id, pad, err)
			return err
		}
	}

	existedBefore := int(id) < prevLen
	wasDeleted := existedBefore && s.mask.Get(int(id))
	s.mask.Set(int(id), false)
	if wasDeleted {
		s.deletedCount--
	}
	if err := s.persist(id, record.StoredRecord{Deleted: false, Vector: v}); err != nil {
		errlog.Logf("vecstore: insert_vector(%d) persist failed: %v", id, err)
		return err
	}
	return nil
}

// Delete tombstones id. No-op if id is out of range. deleted_count is
// incremented only on the live->deleted edge (SPEC_FULL.md invariant 3).
func (s *Storage) Delete(id uint32) error {
	if int(id) >= s.vectors.Len() {
		return nil
	}
	if s.mask.Get(int(id)) {
		return nil
	}
	s.mask.Set(int(id), true)
	s.deletedCount++
	if err := s.persist(id, record.StoredRecord{Deleted: true, Vector: nil}); err != nil {
		errlog.Logf("vecstore: delete(%d) persist failed: %v", id, err)
		return err
	}
	return nil
}

// IsDeleted reads the mask directly.
func (s *Storage) IsDeleted(id uint32) bool {
	return s.mask.Get(int(id))
}

// IterIDs returns a lazy sequence over [0, len) with tombstones filtered,
// by invoking fn for each live id in order. Iteration stops early if fn
// returns false.
func (s *Storage) IterIDs(fn func(id uint32) bool) {
	for id := uint32(0); int(id) < s.vectors.Len(); id++ {
		if s.mask.Get(int(id)) {
			continue
		}
		if !fn(id) {
			return
		}
	}
}

// UpdateFrom appends every live id from other's IterIDs into s,
// cooperatively checking stopFlag between transfers. Returns the
// contiguous range of newly assigned ids [start, end) and TransferStats.
func (s *Storage) UpdateFrom(other *Storage, stopFlag func() bool) (start, end uint32, stats TransferStats, err error) {
	start = uint32(s.vectors.Len())
	end = start

	var transferErr error
	other.IterIDs(func(id uint32) bool {
		if stopFlag != nil && stopFlag() {
			stats.Cancelled = true
			return false
		}
		v, ok := other.GetVector(id)
		if !ok {
			return true
		}
		if _, putErr := s.PutVector(v); putErr != nil {
			transferErr = putErr
			return false
		}
		stats.Copied++
		end = uint32(s.vectors.Len())
		return true
	})

	if transferErr != nil {
		return start, end, stats, transferErr
	}
	if stats.Cancelled {
		return start, end, stats, ErrCancelled
	}
	return start, end, stats, nil
}

// Flusher delegates to the column's Flusher.
func (s *Storage) Flusher() column.Flusher {
	return s.col.Flusher()
}

// Close releases the underlying column's connection pool. Callers must not
// use Storage after Close returns.
func (s *Storage) Close() error {
	return s.col.Close()
}

// Quantize replaces the quantized index with a fresh one built from every
// slot the storage has ever written (live and deleted alike — deletion is
// applied at scoring time, not at quantization time), writing files under
// path.
func (s *Storage) Quantize(path string, cfg quantize.Config) error {
	ids := make([]uint32, 0, s.vectors.Len())
	for id := uint32(0); int(id) < s.vectors.Len(); id++ {
		ids = append(ids, id)
	}
	q, err := quantize.Build(path, cfg, s.dim, s.metric, ids, s.vectors.Get)
	if err != nil {
		errlog.Logf("vecstore: quantize failed under %s: %v", path, err)
		return fmt.Errorf("vecstore: quantize: %w", err)
	}
	s.quantized = q
	s.quantizedPath = path
	return nil
}

// LoadQuantization loads a previously built quantized index from path if
// its files are present, and retains it. A no-op (not an error) if no
// files are present under path.
func (s *Storage) LoadQuantization(path string) error {
	if !quantize.FilesExist(path) {
		return nil
	}
	q, err := quantize.Load(path, s.metric)
	if err != nil {
		errlog.Logf("vecstore: load_quantization failed under %s: %v", path, err)
		return fmt.Errorf("vecstore: load_quantization: %w", err)
	}
	s.quantized = q
	s.quantizedPath = path
	return nil
}

// Files returns the quantized index's files, or nil if none is loaded.
// Exact vectors persist via the column and are not listed here.
func (s *Storage) Files() []string {
	if s.quantized == nil {
		return nil
	}
	return s.quantized.Files()
}

// Scorer returns a metric-dispatched Scorer facade (C7) over this
// storage's vectors, mask, and optional quantized index.
func (s *Storage) Scorer() *scorer.Scorer {
	var qi scorer.QuantizedIndex
	if s.quantized != nil {
		qi = s.quantized
	}
	return scorer.New(s.vectors, s.mask, s.metric, qi)
}

// persist encodes and writes rec for id through the durable column.
func (s *Storage) persist(id uint32, rec record.StoredRecord) error {
	return s.col.Put(record.EncodeKey(id), record.Encode(rec))
}
