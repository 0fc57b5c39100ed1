// Copyright 2024-2026 Aiku AI

// Package idmap provides a dual-keyed, insertion-ordered collection for
// records that pair a Matrix identifier with its counterpart on the bridged
// network. Lookups work from either side in O(1).
//
// The map has no internal locking. The bridge driver is expected to guard
// each map with a single-writer/multi-reader discipline (see the RWMutex in
// the connector package).
package idmap

import "iter"

// Mappable is a record that carries exactly one Matrix-side key and one
// external-side key. Both keys must stay constant while the record is in a
// Map; to change a key, remove the record and insert a new one.
type Mappable[M, X comparable] interface {
	MatrixKey() M
	ExternalKey() X
}

// Map is an insertion-ordered collection of records indexed by both of their
// keys.
type Map[M, X comparable, V Mappable[M, X]] struct {
	items      []V
	byMatrix   map[M]int
	byExternal map[X]int
}

// New creates an empty Map.
func New[M, X comparable, V Mappable[M, X]]() *Map[M, X, V] {
	return &Map[M, X, V]{
		byMatrix:   make(map[M]int),
		byExternal: make(map[X]int),
	}
}

// FromSlice creates a Map holding the given records. Capacities are sized up
// front, so this allocates less than inserting into an empty Map one by one.
func FromSlice[M, X comparable, V Mappable[M, X]](items []V) *Map[M, X, V] {
	m := &Map[M, X, V]{
		items:      make([]V, 0, len(items)),
		byMatrix:   make(map[M]int, len(items)),
		byExternal: make(map[X]int, len(items)),
	}
	for _, item := range items {
		m.Insert(item)
	}
	return m
}

// Insert adds the record and registers both of its keys.
//
// Collision policy: replace. Any live record sharing the new record's Matrix
// key or external key is removed entirely (its slot and both lookup entries)
// before the append, so a collision can never leave a stale record reachable
// from only one side. The displaced records, if any, are returned.
func (m *Map[M, X, V]) Insert(item V) (displaced []V) {
	if old, ok := m.RemoveMatrix(item.MatrixKey()); ok {
		displaced = append(displaced, old)
	}
	if old, ok := m.RemoveExternal(item.ExternalKey()); ok {
		displaced = append(displaced, old)
	}
	pos := len(m.items)
	m.items = append(m.items, item)
	m.byMatrix[item.MatrixKey()] = pos
	m.byExternal[item.ExternalKey()] = pos
	return displaced
}

// GetMatrix returns the record with the given Matrix key.
func (m *Map[M, X, V]) GetMatrix(key M) (V, bool) {
	if pos, ok := m.byMatrix[key]; ok {
		return m.items[pos], true
	}
	var zero V
	return zero, false
}

// GetExternal returns the record with the given external key.
func (m *Map[M, X, V]) GetExternal(key X) (V, bool) {
	if pos, ok := m.byExternal[key]; ok {
		return m.items[pos], true
	}
	var zero V
	return zero, false
}

// HasMatrix reports whether a record with the given Matrix key exists.
func (m *Map[M, X, V]) HasMatrix(key M) bool {
	_, ok := m.byMatrix[key]
	return ok
}

// HasExternal reports whether a record with the given external key exists.
func (m *Map[M, X, V]) HasExternal(key X) bool {
	_, ok := m.byExternal[key]
	return ok
}

// RemoveMatrix removes the record with the given Matrix key and returns it.
// Removing an absent key is a no-op.
func (m *Map[M, X, V]) RemoveMatrix(key M) (V, bool) {
	pos, ok := m.byMatrix[key]
	if !ok {
		var zero V
		return zero, false
	}
	return m.removeAt(pos), true
}

// RemoveExternal removes the record with the given external key and returns
// it. Removing an absent key is a no-op.
func (m *Map[M, X, V]) RemoveExternal(key X) (V, bool) {
	pos, ok := m.byExternal[key]
	if !ok {
		var zero V
		return zero, false
	}
	return m.removeAt(pos), true
}

// removeAt deletes the record at pos, shifts later records down, and reindexes
// them so both lookup tables keep pointing at the right slots.
func (m *Map[M, X, V]) removeAt(pos int) V {
	item := m.items[pos]
	delete(m.byMatrix, item.MatrixKey())
	delete(m.byExternal, item.ExternalKey())
	m.items = append(m.items[:pos], m.items[pos+1:]...)
	for i := pos; i < len(m.items); i++ {
		m.byMatrix[m.items[i].MatrixKey()] = i
		m.byExternal[m.items[i].ExternalKey()] = i
	}
	return item
}

// Len returns the number of live records.
func (m *Map[M, X, V]) Len() int {
	return len(m.items)
}

// All iterates the live records in insertion order. The sequence is
// restartable; each range walks the current state.
func (m *Map[M, X, V]) All() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, item := range m.items {
			if !yield(item) {
				return
			}
		}
	}
}
