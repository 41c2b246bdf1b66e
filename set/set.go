// Package set is a small generic membership set used to check client picks
// (template ids, asset ids) against what the avatar api actually listed.
package set

type Set[T comparable] struct {
	items map[T]struct{}
}

func New[T comparable]() *Set[T] {
	return &Set[T]{items: make(map[T]struct{})}
}

// FromSlice builds a set of key(item) for every item.
func FromSlice[S any, T comparable](items []S, key func(S) T) *Set[T] {
	s := New[T]()
	for _, item := range items {
		s.Add(key(item))
	}
	return s
}

func (s *Set[T]) Add(item T) {
	s.items[item] = struct{}{}
}

// Contains is safe on a nil set.
func (s *Set[T]) Contains(item T) bool {
	if s == nil {
		return false
	}
	_, ok := s.items[item]
	return ok
}

func (s *Set[T]) Size() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}
