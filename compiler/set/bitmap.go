package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Bitmap is a fixed width set of small integers,
	// such as register units of one ISA.
	Bitmap uint64
)

func BitmapOf(i ...int) (s Bitmap) {
	for _, i := range i {
		s = s.Set(i)
	}

	return s
}

func (s Bitmap) Set(i int) Bitmap   { return s | 1<<i }
func (s Bitmap) Clear(i int) Bitmap { return s &^ (1 << i) }
func (s Bitmap) IsSet(i int) bool   { return s&(1<<i) != 0 }

func (s Bitmap) Or(x Bitmap) Bitmap     { return s | x }
func (s Bitmap) And(x Bitmap) Bitmap    { return s & x }
func (s Bitmap) AndNot(x Bitmap) Bitmap { return s &^ x }

func (s Bitmap) Size() int { return bits.OnesCount64(uint64(s)) }

func (s Bitmap) First() int {
	if s == 0 {
		return -1
	}

	return bits.TrailingZeros64(uint64(s))
}

func (s Bitmap) Last() int {
	return bits.Len64(uint64(s)) - 1
}

func (s Bitmap) Range(f func(i int) bool) {
	for x := uint64(s); x != 0; {
		j := bits.TrailingZeros64(x)
		x &^= 1 << j

		if !f(j) {
			return
		}
	}
}

func (s Bitmap) Slice() []int {
	r := make([]int, 0, s.Size())

	s.Range(func(i int) bool {
		r = append(r, i)
		return true
	})

	return r
}

func (s Bitmap) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(i int) bool {
		b = e.AppendInt(b, i)

		return true
	})

	b = e.AppendBreak(b)

	return b
}
