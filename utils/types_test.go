package utils

import "testing"

func TestNonZero(t *testing.T) {
	if NonZero("") != nil || NonZero(0) != nil || NonZero(false) != nil {
		t.Errorf("NonZero() of zero value should be nil")
	}
	if got := NonZero("abc"); got == nil || *got != "abc" {
		t.Errorf("NonZero(abc) = %v", got)
	}
	if got := ToPointer(false); got == nil || *got {
		t.Errorf("ToPointer(false) = %v", got)
	}
}
