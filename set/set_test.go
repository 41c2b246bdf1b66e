package set

import "testing"

type item struct {
	id string
}

func TestFromSlice(t *testing.T) {
	s := FromSlice([]item{{"a"}, {"b"}, {"a"}}, func(i item) string { return i.id })
	if s.Size() != 2 {
		t.Errorf("Size() = %d, want 2", s.Size())
	}
	if !s.Contains("a") || !s.Contains("b") {
		t.Errorf("missing listed ids")
	}
	if s.Contains("c") {
		t.Errorf("Contains(c) = true")
	}
}

func TestNilSet(t *testing.T) {
	var s *Set[string]
	if s.Contains("a") || s.Size() != 0 {
		t.Errorf("nil set should be empty")
	}
}
