// Package entity provides typed-index arenas used by the IR.
//
// Entities are small integer handles. A handle is valid for the whole life of the
// arena that issued it: arenas never reuse or move elements, so pointers returned
// by Pool.Get stay valid while the pool grows.
package entity

import "fmt"

type (
	Key interface {
		~uint32
	}

	// Pool is an append-only arena keyed by K.
	Pool[K Key, V any] struct {
		pages []*[pageSize]V
		n     int
	}

	// Map is a secondary map densely keyed by K.
	// Reading a key which was never set returns the default value.
	Map[K Key, V any] struct {
		d   []V
		def V
	}
)

const pageSize = 256

// Reserved is the handle value which never refers to an entity.
const Reserved = ^uint32(0)

func (p *Pool[K, V]) Push(v V) K {
	pg, i := p.n/pageSize, p.n%pageSize

	if pg == len(p.pages) {
		p.pages = append(p.pages, new([pageSize]V))
	}

	p.pages[pg][i] = v
	p.n++

	return K(p.n - 1)
}

func (p *Pool[K, V]) Get(k K) *V {
	if !p.Valid(k) {
		panic(fmt.Sprintf("entity: invalid key %d (len %d)", k, p.n))
	}

	return &p.pages[int(k)/pageSize][int(k)%pageSize]
}

func (p *Pool[K, V]) Valid(k K) bool {
	return uint32(k) != Reserved && int(k) < p.n
}

func (p *Pool[K, V]) Len() int { return p.n }

// Keys returns all keys in creation order.
func (p *Pool[K, V]) Keys() []K {
	r := make([]K, p.n)

	for i := range r {
		r[i] = K(i)
	}

	return r
}

// Reset drops all elements. Pages are kept for reuse.
func (p *Pool[K, V]) Reset() {
	var zero V

	for _, pg := range p.pages {
		for i := range pg {
			pg[i] = zero
		}
	}

	p.n = 0
}

func MakeMap[K Key, V any](def V) Map[K, V] {
	return Map[K, V]{def: def}
}

func (m *Map[K, V]) Get(k K) V {
	if int(k) >= len(m.d) {
		return m.def
	}

	return m.d[k]
}

func (m *Map[K, V]) Set(k K, v V) {
	for int(k) >= len(m.d) {
		m.d = append(m.d, m.def)
	}

	m.d[k] = v
}

// Ptr returns a pointer to the element growing the map if needed.
// The pointer is invalidated by the next call growing the map.
func (m *Map[K, V]) Ptr(k K) *V {
	m.Set(k, m.Get(k))

	return &m.d[k]
}

func (m *Map[K, V]) Len() int { return len(m.d) }

func (m *Map[K, V]) Reset() {
	m.d = m.d[:0]
}
