package profile

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"engame/clients/readyplayerme"
	"engame/services/record"
	"engame/services/session"
)

type fakeAssets struct {
	calls    []string
	token    string
	assets   []readyplayerme.Asset
	listErr  error
	equipErr error
}

func (f *fakeAssets) IssueAnonymousToken(_ context.Context, appID string) (*readyplayerme.AnonymousUser, error) {
	f.calls = append(f.calls, "token")
	return &readyplayerme.AnonymousUser{Token: f.token}, nil
}

func (f *fakeAssets) ListAssets(_ context.Context, token, avatarID, appID string) ([]readyplayerme.Asset, error) {
	f.calls = append(f.calls, "assets:"+avatarID+":"+appID)
	return f.assets, f.listErr
}

func (f *fakeAssets) EquipAsset(_ context.Context, avatarID, assetID, token string) error {
	f.calls = append(f.calls, "equip:"+avatarID+":"+assetID+":"+token)
	return f.equipErr
}

var u1 = &session.Session{Identity: "U1", AccessToken: "t1"}

func onboarded(t *testing.T) record.Store {
	t.Helper()
	store := record.NewMemoryStore()
	if err := store.Insert(context.Background(), u1, "abc123"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return store
}

func TestOpenAndEquip(t *testing.T) {
	ctx := context.Background()
	assets := &fakeAssets{token: "tok", assets: []readyplayerme.Asset{{ID: "A1", Name: "Hat"}, {ID: "A2", Name: "Glasses"}}}
	svc := NewService(assets, onboarded(t), "app", time.Second)

	ws, err := svc.Open(ctx, u1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if ws.AvatarID != "abc123" || len(ws.Assets) != 2 {
		t.Errorf("Open() = %+v", ws)
	}
	if err := svc.Equip(ctx, u1, ws, "A2"); err != nil {
		t.Fatalf("Equip() error = %v", err)
	}
	want := []string{"token", "assets:abc123:app", "equip:abc123:A2:tok"}
	if !reflect.DeepEqual(assets.calls, want) {
		t.Errorf("calls = %v, want %v", assets.calls, want)
	}
}

func TestOpenWithoutAvatar(t *testing.T) {
	assets := &fakeAssets{token: "tok"}
	svc := NewService(assets, record.NewMemoryStore(), "app", 0)
	if _, err := svc.Open(context.Background(), u1); !errors.Is(err, ErrNoAvatar) {
		t.Errorf("Open() error = %v, want ErrNoAvatar", err)
	}
	if _, err := svc.Open(context.Background(), nil); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Open(nil) error = %v, want ErrNoSession", err)
	}
	if len(assets.calls) != 0 {
		t.Errorf("calls = %v, want none", assets.calls)
	}
}

func TestOpenListFailure(t *testing.T) {
	assets := &fakeAssets{token: "tok", listErr: &readyplayerme.APIError{Status: 500}}
	svc := NewService(assets, onboarded(t), "app", 0)
	_, err := svc.Open(context.Background(), u1)
	var apiErr *readyplayerme.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("Open() error = %v, want wrapped APIError", err)
	}
}

func TestEquipRejects(t *testing.T) {
	ctx := context.Background()
	assets := &fakeAssets{token: "tok", assets: []readyplayerme.Asset{{ID: "A1"}}}
	svc := NewService(assets, onboarded(t), "app", 0)
	ws, err := svc.Open(ctx, u1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	tests := []struct {
		name    string
		session *session.Session
		assetID string
		want    error
	}{
		{"no session", nil, "A1", session.ErrNoSession},
		{"other identity", &session.Session{Identity: "U2"}, "A1", ErrWorkspaceMismatch},
		{"nothing selected", u1, "", ErrAssetNotListed},
		{"not listed", u1, "A9", ErrAssetNotListed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Equip(ctx, tt.session, ws, tt.assetID); !errors.Is(err, tt.want) {
				t.Errorf("Equip() error = %v, want %v", err, tt.want)
			}
		})
	}
	if len(assets.calls) != 2 {
		t.Errorf("equip attempted: %v", assets.calls)
	}
}

func TestEquipFailureReported(t *testing.T) {
	ctx := context.Background()
	assets := &fakeAssets{token: "tok", assets: []readyplayerme.Asset{{ID: "A1"}}, equipErr: &readyplayerme.APIError{Status: 400, Message: "asset locked"}}
	svc := NewService(assets, onboarded(t), "app", 0)
	ws, err := svc.Open(ctx, u1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	err = svc.Equip(ctx, u1, ws, "A1")
	var apiErr *readyplayerme.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 400 {
		t.Errorf("Equip() error = %v", err)
	}
}
