package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBits(t *testing.T) {
	s := MakeBits[uint32](10)

	s.Set(1)
	s.Set(70)
	s.Set(130)

	assert.True(t, s.IsSet(70))
	assert.False(t, s.IsSet(71))
	assert.False(t, s.IsSet(1000))
	assert.Equal(t, 3, s.Size())
	assert.Equal(t, []uint32{1, 70, 130}, s.Slice())

	c := s.Copy()
	c.Clear(70)

	assert.True(t, s.IsSet(70))
	assert.False(t, c.IsSet(70))

	x := MakeBits[uint32](0)
	x.Set(5)

	assert.True(t, c.Merge(x))
	assert.False(t, c.Merge(x))
	assert.Equal(t, []uint32{1, 5, 130}, c.Slice())

	c.Substract(s)
	assert.Equal(t, []uint32{5}, c.Slice())

	c.Intersect(s)
	assert.Equal(t, 0, c.Size())

	assert.True(t, c.Equal(MakeBits[uint32](0)))
	assert.False(t, s.Equal(x))

	s.Reset()
	assert.Equal(t, 0, s.Size())
}

func TestBitmap(t *testing.T) {
	s := BitmapOf(3, 0, 63)

	assert.Equal(t, 3, s.Size())
	assert.Equal(t, 0, s.First())
	assert.Equal(t, 63, s.Last())
	assert.Equal(t, []int{0, 3, 63}, s.Slice())

	s = s.Clear(0)
	assert.False(t, s.IsSet(0))
	assert.Equal(t, 3, s.First())

	assert.Equal(t, BitmapOf(3), s.And(BitmapOf(3, 4)))
	assert.Equal(t, BitmapOf(63), s.AndNot(BitmapOf(3)))
	assert.Equal(t, -1, Bitmap(0).First())
}
