// Package deleted implements DeletedMask (C2 in SPEC_FULL.md): a packed
// bit-set of tombstones index-aligned with chunked.Vectors. Bit i is 1 iff
// point i is deleted or was never materialized by a push/insert.
//
// This package carries no concurrency guarantees of its own; the
// single-writer discipline is enforced by the caller (vecstore.Storage).
package deleted

import "math/bits"

const wordBits = 64

// Mask is a growable bit-set.
type Mask struct {
	words []uint64
	length int
}

// New creates an empty mask.
func New() *Mask {
	return &Mask{}
}

// Len returns the number of bits tracked.
func (m *Mask) Len() int { return m.length }

// Count returns the number of set bits.
func (m *Mask) Count() int {
	if m.length == 0 {
		return 0
	}
	n := 0
	fullWords := m.length / wordBits
	for _, w := range m.words[:fullWords] {
		n += bits.OnesCount64(w)
	}
	for i := fullWords * wordBits; i < m.length; i++ {
		if m.Get(i) {
			n++
		}
	}
	return n
}

// Get reports whether bit i is set. Returns true (deleted/unmaterialized)
// for i >= Len(), matching the storage facade's default-to-deleted
// convention (SPEC_FULL.md §4.2).
func (m *Mask) Get(i int) bool {
	if i < 0 || i >= m.length {
		return true
	}
	word, bit := i/wordBits, uint(i%wordBits)
	return m.words[word]&(1<<bit) != 0
}

// Set assigns bit i, growing the mask if necessary.
func (m *Mask) Set(i int, v bool) {
	if i >= m.length {
		m.Resize(i+1, true)
	}
	word, bit := i/wordBits, uint(i%wordBits)
	if v {
		m.words[word] |= 1 << bit
	} else {
		m.words[word] &^= 1 << bit
	}
}

// Push appends a single bit and returns its index.
func (m *Mask) Push(v bool) int {
	i := m.length
	m.Resize(m.length+1, false)
	m.Set(i, v)
	return i
}

// Resize grows (or, if n <= Len(), leaves unchanged) the mask to length n.
// New bits introduced by growth are initialized to fill.
func (m *Mask) Resize(n int, fill bool) {
	if n <= m.length {
		return
	}
	needWords := (n + wordBits - 1) / wordBits
	// New words start cleared so bits at or past m.length are always 0;
	// the loop below sets exactly the new bits when fill is true.
	for len(m.words) < needWords {
		m.words = append(m.words, 0)
	}
	if fill {
		// Ensure bits between the old length and the previous word boundary
		// (already-allocated but below m.length) are untouched, and bits from
		// m.length up to n within a partially-filled word are set.
		for i := m.length; i < n; i++ {
			word, bit := i/wordBits, uint(i%wordBits)
			m.words[word] |= 1 << bit
		}
	}
	m.length = n
}
