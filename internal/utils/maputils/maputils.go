package maputils

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// Copy returns a (shallow) copy of the given map.
func Copy[K comparable, T any](m map[K]T) map[K]T {
	c := make(map[K]T, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K constraints.Ordered, T any](m map[K]T) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
