package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"engame/clients/readyplayerme"
	"engame/services/record"
	"engame/services/session"
	"engame/set"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoAvatar          = errors.New("no avatar found for this account")
	ErrAssetNotListed    = errors.New("please select an asset")
	ErrWorkspaceMismatch = errors.New("profile was opened by another user")
)

type AssetAPI interface {
	IssueAnonymousToken(ctx context.Context, appID string) (*readyplayerme.AnonymousUser, error)
	ListAssets(ctx context.Context, token, avatarID, appID string) ([]readyplayerme.Asset, error)
	EquipAsset(ctx context.Context, avatarID, assetID, token string) error
}

type Service interface {
	// Open loads the avatar id and the assets that can be equipped on it.
	Open(ctx context.Context, s *session.Session) (*Workspace, error)
	// Equip binds one listed asset to the avatar. Nothing is stored locally.
	Equip(ctx context.Context, s *session.Session, ws *Workspace, assetID string) error
}

// Workspace is one opened profile screen.
type Workspace struct {
	Identity session.Identity
	AvatarID string
	Assets   []readyplayerme.Asset
	token    string
	listed   *set.Set[string]
}

type service struct {
	assets      AssetAPI
	records     record.Store
	appID       string
	stepTimeout time.Duration
}

var _ Service = (*service)(nil)

func NewService(assets AssetAPI, records record.Store, appID string, stepTimeout time.Duration) Service {
	return &service{
		assets:      assets,
		records:     records,
		appID:       appID,
		stepTimeout: stepTimeout,
	}
}

func (p *service) Open(ctx context.Context, s *session.Session) (*Workspace, error) {
	if s == nil {
		return nil, session.ErrNoSession
	}

	stepCtx, cancel := p.step(ctx)
	avatar, err := p.records.Get(stepCtx, s)
	cancel()
	if errors.Is(err, record.ErrNotFound) || (err == nil && avatar.Reference() == "") {
		return nil, ErrNoAvatar
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile data: %w", err)
	}

	stepCtx, cancel = p.step(ctx)
	user, err := p.assets.IssueAnonymousToken(stepCtx, p.appID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to load profile data: %w", err)
	}
	if user == nil || user.Token == "" {
		return nil, errors.New("failed to generate token")
	}

	stepCtx, cancel = p.step(ctx)
	assets, err := p.assets.ListAssets(stepCtx, user.Token, avatar.Reference(), p.appID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assets: %w", err)
	}
	listed := set.FromSlice(assets, func(a readyplayerme.Asset) string { return a.ID })
	log.Debug().Str("identity", string(s.Identity)).Int("assets", listed.Size()).Msg("opened profile")

	return &Workspace{
		Identity: s.Identity,
		AvatarID: avatar.Reference(),
		Assets:   assets,
		token:    user.Token,
		listed:   listed,
	}, nil
}

func (p *service) Equip(ctx context.Context, s *session.Session, ws *Workspace, assetID string) error {
	if s == nil {
		return session.ErrNoSession
	}
	if ws == nil || ws.Identity != s.Identity {
		return ErrWorkspaceMismatch
	}
	if assetID == "" || !ws.listed.Contains(assetID) {
		return ErrAssetNotListed
	}

	stepCtx, cancel := p.step(ctx)
	defer cancel()
	if err := p.assets.EquipAsset(stepCtx, ws.AvatarID, assetID, ws.token); err != nil {
		return fmt.Errorf("failed to equip asset: %w", err)
	}
	return nil
}

func (p *service) step(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.stepTimeout)
}
