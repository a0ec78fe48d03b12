package pathset

import (
	"cmp"
	"maps"
	"slices"
)

type Set[T comparable] map[T]struct{}

func NewSet[T comparable]() Set[T] {
	return make(Set[T])
}

func (s Set[T]) Add(item T) {
	s[item] = struct{}{}
}

// AddAll merges items into the set and returns how many were new.
func (s Set[T]) AddAll(items ...T) int {
	added := 0
	for _, item := range items {
		if _, exists := s[item]; !exists {
			s[item] = struct{}{}
			added++
		}
	}
	return added
}

func (s Set[T]) Contains(item T) bool {
	_, exists := s[item]
	return exists
}

func (s Set[T]) Remove(element T) {
	delete(s, element)
}

func (s Set[T]) Clear() {
	clear(s)
}

func (s Set[T]) Size() int {
	return len(s)
}

// Sorted returns the members in ascending order.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	return slices.Sorted(maps.Keys(s))
}
