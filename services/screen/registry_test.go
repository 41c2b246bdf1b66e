package screen

import (
	"errors"
	"testing"
	"time"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry[string](time.Minute)
	id := r.Mount("U1", "token-1")

	got, err := r.Get(id, "U1")
	if err != nil || got != "token-1" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if _, err := r.Get(id, "U2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get() by another identity error = %v, want ErrForbidden", err)
	}
	if err := r.Unmount(id, "U2"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Unmount() by another identity error = %v, want ErrForbidden", err)
	}
	if !r.Alive(id) {
		t.Errorf("Alive() = false before unmount")
	}
	if err := r.Unmount(id, "U1"); err != nil {
		t.Fatalf("Unmount() error = %v", err)
	}
	if r.Alive(id) {
		t.Errorf("Alive() = true after unmount")
	}
	if _, err := r.Get(id, "U1"); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Get() after unmount error = %v, want ErrNotMounted", err)
	}
	if err := r.Unmount(id, "U1"); err != nil {
		t.Errorf("second Unmount() error = %v", err)
	}
}

func TestRegistryExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry[int](time.Minute)
	r.now = func() time.Time { return now }

	id := r.Mount("U1", 7)
	now = now.Add(59 * time.Second)
	if !r.Alive(id) {
		t.Fatalf("mount expired early")
	}
	now = now.Add(time.Second)
	if r.Alive(id) {
		t.Errorf("mount still alive after ttl")
	}
	if _, err := r.Get(id, "U1"); !errors.Is(err, ErrNotMounted) {
		t.Errorf("Get() error = %v, want ErrNotMounted", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want expired mount swept", r.Len())
	}
}

func TestRegistryUnmountAll(t *testing.T) {
	r := NewRegistry[int](0)
	r.Mount("U1", 1)
	r.Mount("U1", 2)
	keep := r.Mount("U2", 3)

	if n := r.UnmountAll("U1"); n != 2 {
		t.Errorf("UnmountAll() = %d, want 2", n)
	}
	if r.Len() != 1 || !r.Alive(keep) {
		t.Errorf("other identity's mount was removed")
	}
}
