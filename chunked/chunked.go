// Package chunked implements ChunkedVectors (C1 in SPEC_FULL.md): a
// growable array of fixed-length float32 vectors stored as a sequence of
// equally-sized chunks so that appends never move previously written data.
// That stability is what lets the scoring path (scorer.RawScorer) read
// concurrently with a writer holding no internal lock (SPEC_FULL.md §5, §9).
package chunked

// defaultChunkBytes is the target size of one chunk before rounding down to
// a whole number of vectors. A pure implementation knob with no observable
// semantics (SPEC_FULL.md §4.1).
const defaultChunkBytes = 32 * 1024

// Vectors is a logical array of fixed-dimension float32 vectors, indexed by
// a dense uint32 id, backed by fixed-size chunks.
type Vectors struct {
	dim             int
	vectorsPerChunk int
	chunks          [][]float32 // each chunk holds vectorsPerChunk*dim float32s, contiguous
	length          int
}

// New creates an empty Vectors for vectors of the given dimension.
func New(dim int) *Vectors {
	return newWithChunkBytes(dim, defaultChunkBytes)
}

func newWithChunkBytes(dim, chunkBytes int) *Vectors {
	if dim <= 0 {
		panic("chunked: dim must be positive")
	}
	perChunk := chunkBytes / (dim * 4)
	if perChunk < 1 {
		perChunk = 1 // a chunk holds exactly one vector if it's larger than chunkBytes
	}
	return &Vectors{dim: dim, vectorsPerChunk: perChunk}
}

// Dim returns the fixed vector dimension.
func (v *Vectors) Dim() int { return v.dim }

// Len returns the number of slots, including tombstoned ones.
func (v *Vectors) Len() int { return v.length }

// Get returns the vector stored at id. Undefined if id >= Len(): it panics
// only when id lies beyond the allocated chunks.
func (v *Vectors) Get(id uint32) []float32 {
	chunkIdx, offset := v.locate(id)
	c := v.chunks[chunkIdx]
	return c[offset*v.dim : (offset+1)*v.dim]
}

// Push appends v as a new slot and returns its id.
func (v *Vectors) Push(vec []float32) uint32 {
	if len(vec) != v.dim {
		panic("chunked: vector dimension mismatch")
	}
	id := uint32(v.length)
	v.growTo(v.length + 1)
	copy(v.Get(id), vec)
	return id
}

// Insert ensures Len() > id (growing with zero-valued padding slots as
// needed), then overwrites slot id with vec.
func (v *Vectors) Insert(id uint32, vec []float32) {
	if len(vec) != v.dim {
		panic("chunked: vector dimension mismatch")
	}
	if int(id)+1 > v.length {
		v.growTo(int(id) + 1)
	}
	copy(v.Get(id), vec)
}

// growTo extends the logical length to n, allocating whole chunks as
// needed. Never moves existing chunks.
func (v *Vectors) growTo(n int) {
	for v.length < n {
		chunkIdx := v.length / v.vectorsPerChunk
		if chunkIdx >= len(v.chunks) {
			v.chunks = append(v.chunks, make([]float32, v.vectorsPerChunk*v.dim))
		}
		remaining := (chunkIdx+1)*v.vectorsPerChunk - v.length
		step := n - v.length
		if step > remaining {
			step = remaining
		}
		v.length += step
	}
}

func (v *Vectors) locate(id uint32) (chunkIdx, offset int) {
	i := int(id)
	return i / v.vectorsPerChunk, i % v.vectorsPerChunk
}
