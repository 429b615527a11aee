package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKey uint32

func TestPoolStablePointers(t *testing.T) {
	var p Pool[testKey, int]

	k0 := p.Push(10)
	first := p.Get(k0)

	for i := 0; i < 3*pageSize; i++ {
		p.Push(i)
	}

	*first = 42

	assert.Equal(t, 42, *p.Get(k0))
	assert.Equal(t, 3*pageSize+1, p.Len())
	assert.Equal(t, testKey(pageSize+1), p.Keys()[pageSize+1])

	assert.False(t, p.Valid(testKey(Reserved)))
	assert.False(t, p.Valid(testKey(p.Len())))
	assert.Panics(t, func() { p.Get(testKey(p.Len())) })

	p.Reset()
	require.Equal(t, 0, p.Len())

	k := p.Push(7)
	assert.Equal(t, testKey(0), k)
	assert.Equal(t, 7, *p.Get(k))
}

func TestMapDefault(t *testing.T) {
	m := MakeMap[testKey, int](-1)

	assert.Equal(t, -1, m.Get(100))

	m.Set(3, 5)
	assert.Equal(t, 5, m.Get(3))
	assert.Equal(t, -1, m.Get(2))
	assert.Equal(t, 4, m.Len())

	*m.Ptr(7) = 9
	assert.Equal(t, 9, m.Get(7))
	assert.Equal(t, -1, m.Get(6))

	m.Reset()
	assert.Equal(t, -1, m.Get(3))
}
