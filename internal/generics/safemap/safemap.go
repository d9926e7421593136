package safemap

import (
	"sort"
	"sync"
)

// TypedMap is a type-safe map safe for concurrent writers. Concurrent
// fan-outs record one result per key in it.
type TypedMap[T any] struct {
	m sync.Map
}

// Store saves a value of type T under the given key.
func (tm *TypedMap[T]) Store(key string, val T) {
	tm.m.Store(key, val)
}

// Load retrieves the value of type T for key.
// The ok return is false if no value was present.
func (tm *TypedMap[T]) Load(key string) (T, bool) {
	raw, ok := tm.m.Load(key)
	if !ok {
		var zero T
		return zero, false
	}
	v, _ := raw.(T)
	return v, true
}

// Delete removes the key from the map.
func (tm *TypedMap[T]) Delete(key string) {
	tm.m.Delete(key)
}

// Range calls the given function for every key/value.
// If fn returns false, iteration stops.
func (tm *TypedMap[T]) Range(fn func(key string, val T) bool) {
	tm.m.Range(func(rawKey, rawVal any) bool {
		v, _ := rawVal.(T)
		return fn(rawKey.(string), v)
	})
}

// Keys returns every key in sorted order.
func (tm *TypedMap[T]) Keys() []string {
	var keys []string
	tm.Range(func(k string, _ T) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys
}

// Filter returns the sorted keys whose value satisfies keep.
func (tm *TypedMap[T]) Filter(keep func(T) bool) []string {
	var keys []string
	tm.Range(func(k string, v T) bool {
		if keep(v) {
			keys = append(keys, k)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

// Len counts the stored keys.
func (tm *TypedMap[T]) Len() int {
	n := 0
	tm.Range(func(string, T) bool {
		n++
		return true
	})
	return n
}
