package record

import (
	"context"
	"errors"
	"testing"

	"engame/services/session"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	u1 := &session.Session{Identity: "U1"}

	if _, err := store.Get(ctx, u1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if err := store.Insert(ctx, u1, "abc123"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	got, err := store.Get(ctx, u1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != "U1" || got.Reference() != "abc123" {
		t.Errorf("Get() = %+v", got)
	}
	if err := store.Insert(ctx, u1, "other"); !errors.Is(err, ErrConflict) {
		t.Errorf("second Insert() error = %v, want ErrConflict", err)
	}
	if _, err := store.Get(ctx, nil); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Get(nil) error = %v, want ErrNoSession", err)
	}
}

func TestReference(t *testing.T) {
	tests := []struct {
		name   string
		avatar *Avatar
		want   string
	}{
		{"nil record", nil, ""},
		{"empty url", &Avatar{ID: "U1"}, ""},
		{"url set", &Avatar{ID: "U1", URL: "D1"}, "D1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.avatar.Reference(); got != tt.want {
				t.Errorf("Reference() = %q, want %q", got, tt.want)
			}
		})
	}
}
