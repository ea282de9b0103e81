// Package coverage holds per-test coverage bitmaps and the persisted
// repository that accumulates them across runs.
package coverage

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Bitmap is a fixed-width dense bit array over probe points. All bitmaps
// in one repository share the same width; mixing widths in the in-place
// operations is a programming error and panics.
type Bitmap struct {
	n    int
	bits *bitset.BitSet
}

// NewBitmap creates an empty bitmap over n probe points.
func NewBitmap(n int) *Bitmap {
	return &Bitmap{n: n, bits: bitset.New(uint(n))}
}

// Len returns the probe-point width.
func (b *Bitmap) Len() int { return b.n }

// Set marks probe i as covered.
func (b *Bitmap) Set(i int) {
	b.check(i)
	b.bits.Set(uint(i))
}

// Get reports whether probe i is covered.
func (b *Bitmap) Get(i int) bool {
	b.check(i)
	return b.bits.Test(uint(i))
}

func (b *Bitmap) check(i int) {
	if i < 0 || i >= b.n {
		panic(fmt.Sprintf("coverage: probe index %d out of range [0,%d)", i, b.n))
	}
}

// Clone returns an independent copy.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{n: b.n, bits: b.bits.Clone()}
}

// UnionInPlace sets every bit of other in b.
func (b *Bitmap) UnionInPlace(other *Bitmap) {
	b.sameWidth(other)
	b.bits.InPlaceUnion(other.bits)
}

// IntersectInPlace clears every bit of b not set in other.
func (b *Bitmap) IntersectInPlace(other *Bitmap) {
	b.sameWidth(other)
	b.bits.InPlaceIntersection(other.bits)
}

// Cardinality returns the number of covered probes.
func (b *Bitmap) Cardinality() int {
	return int(b.bits.Count())
}

// UnionCardinality returns |b ∪ other| without allocating.
func (b *Bitmap) UnionCardinality(other *Bitmap) int {
	b.sameWidth(other)
	return int(b.bits.UnionCardinality(other.bits))
}

func (b *Bitmap) sameWidth(other *Bitmap) {
	if b.n != other.n {
		panic(fmt.Sprintf("coverage: bitmap width mismatch (%d vs %d)", b.n, other.n))
	}
}

// Bytes serialises the bitmap into ceil(n/8) bytes, bit i at byte i/8,
// mask 1<<(i%8).
func (b *Bitmap) Bytes() []byte {
	out := make([]byte, (b.n+7)/8)
	for i, e := b.bits.NextSet(0); e && int(i) < b.n; i, e = b.bits.NextSet(i + 1) {
		out[i/8] |= 1 << (i % 8)
	}
	return out
}

// BitmapFromBytes rebuilds a bitmap of width n from Bytes output.
func BitmapFromBytes(n int, data []byte) (*Bitmap, error) {
	if len(data) != (n+7)/8 {
		return nil, fmt.Errorf("coverage: %w: got %d bytes, want %d for %d probe points",
			ErrWidthMismatch, len(data), (n+7)/8, n)
	}
	b := NewBitmap(n)
	for i := 0; i < n; i++ {
		if data[i/8]&(1<<(i%8)) != 0 {
			b.bits.Set(uint(i))
		}
	}
	return b, nil
}

// Bar renders a fixed-width coverage bar: each cell is filled when any
// probe of its chunk is covered.
func (b *Bitmap) Bar(width int) string {
	if width <= 0 || b.n == 0 {
		return ""
	}
	var sb strings.Builder
	chunk := (b.n + width - 1) / width
	for cell := 0; cell < width; cell++ {
		lo := cell * chunk
		hi := lo + chunk
		if hi > b.n {
			hi = b.n
		}
		filled := false
		for i := lo; i < hi; i++ {
			if b.bits.Test(uint(i)) {
				filled = true
				break
			}
		}
		if filled {
			sb.WriteRune('█')
		} else {
			sb.WriteRune('·')
		}
	}
	return sb.String()
}
