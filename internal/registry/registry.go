// Package registry remembers which terminal belongs to which editor document.
package registry

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Key identifies an editor's document. Editors showing the same document
// share a key.
type Key string

// Entry is one key/terminal association.
type Entry[T any] struct {
	Key      Key
	Terminal T
}

// Registry maps editor keys to terminals. Positions follow the most recent
// Set, so Last is the terminal associated most recently overall.
// A Registry is not safe for concurrent use.
type Registry[T any] struct {
	m *orderedmap.OrderedMap[Key, T]
}

func New[T any]() *Registry[T] {
	return &Registry[T]{m: orderedmap.New[Key, T]()}
}

// Set associates terminal with key, replacing any previous association.
func (r *Registry[T]) Set(key Key, terminal T) {
	if _, present := r.m.Set(key, terminal); present {
		_ = r.m.MoveToBack(key)
	}
}

func (r *Registry[T]) Get(key Key) (T, bool) {
	return r.m.Get(key)
}

// Delete removes the association for key. Missing keys are ignored.
func (r *Registry[T]) Delete(key Key) {
	r.m.Delete(key)
}

func (r *Registry[T]) Len() int {
	return r.m.Len()
}

// Values returns the associated terminals, least recent first. A terminal
// bound to several keys appears once per key.
func (r *Registry[T]) Values() []T {
	out := make([]T, 0, r.m.Len())
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Entries returns all associations, least recent first.
func (r *Registry[T]) Entries() []Entry[T] {
	out := make([]Entry[T], 0, r.m.Len())
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Entry[T]{Key: pair.Key, Terminal: pair.Value})
	}
	return out
}

// Last returns the most recently associated terminal.
func (r *Registry[T]) Last() (T, bool) {
	pair := r.m.Newest()
	if pair == nil {
		var zero T
		return zero, false
	}
	return pair.Value, true
}

// DeleteFunc removes every association whose terminal matches and returns
// the removed keys.
func (r *Registry[T]) DeleteFunc(match func(T) bool) []Key {
	var removed []Key
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		if match(pair.Value) {
			removed = append(removed, pair.Key)
		}
	}
	for _, key := range removed {
		r.m.Delete(key)
	}
	return removed
}
