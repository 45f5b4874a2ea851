package store

import "slices"

// ordered is a map that remembers insertion order. Replacing an existing
// key keeps its position.
type ordered[T any] struct {
	keys   []string
	values map[string]T
}

func newOrdered[T any]() *ordered[T] {
	return &ordered[T]{values: make(map[string]T)}
}

func (o *ordered[T]) get(key string) (T, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *ordered[T]) set(key string, v T) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *ordered[T]) delete(key string) bool {
	if _, ok := o.values[key]; !ok {
		return false
	}
	delete(o.values, key)
	if i := slices.Index(o.keys, key); i >= 0 {
		o.keys = slices.Delete(o.keys, i, i+1)
	}
	return true
}

func (o *ordered[T]) len() int {
	return len(o.keys)
}

// each calls fn for every value in insertion order until fn returns false.
func (o *ordered[T]) each(fn func(key string, v T) bool) {
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}
