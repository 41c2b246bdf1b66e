package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"engame/clients/readyplayerme"
	"engame/services/gate"
	"engame/services/record"
	"engame/services/session"
	"engame/set"

	"github.com/rs/zerolog/log"
)

var (
	ErrTemplateNotChosen = errors.New("please select a template")
	ErrAttemptMismatch   = errors.New("onboarding was started by another user")
)

// AvatarAPI is the part of the avatar api the flow needs.
type AvatarAPI interface {
	IssueAnonymousToken(ctx context.Context, appID string) (*readyplayerme.AnonymousUser, error)
	ListTemplates(ctx context.Context, token string) ([]readyplayerme.Template, error)
	CreateDraft(ctx context.Context, templateID, token string) (*readyplayerme.Draft, error)
	PromoteDraft(ctx context.Context, avatarID, token string) error
	DeleteAvatar(ctx context.Context, avatarID, token string) error
}

// Completer re-evaluates the gate once the record is written.
type Completer interface {
	Recheck(ctx context.Context, s *session.Session) gate.Decision
}

type Config struct {
	AppID string
	// StepTimeout bounds every remote call. Zero leaves only the client timeout.
	StepTimeout time.Duration
	// DiscardOrphans deletes a draft that was created but never recorded.
	DiscardOrphans bool
}

// Attempt is one opened onboarding screen: the anonymous token and the
// templates offered with it.
type Attempt struct {
	Identity  session.Identity
	Templates []readyplayerme.Template
	token     string
	offered   *set.Set[string]
}

type Result struct {
	AvatarID string
	Decision gate.Decision
}

type Flow struct {
	avatars   AvatarAPI
	records   record.Store
	completer Completer
	cfg       Config
}

func NewFlow(avatars AvatarAPI, records record.Store, completer Completer, cfg Config) *Flow {
	return &Flow{
		avatars:   avatars,
		records:   records,
		completer: completer,
		cfg:       cfg,
	}
}

// Start issues the anonymous token and lists templates. Nothing is written.
func (f *Flow) Start(ctx context.Context, s *session.Session) (*Attempt, error) {
	if s == nil {
		return nil, session.ErrNoSession
	}

	stepCtx, cancel := f.step(ctx)
	user, err := f.avatars.IssueAnonymousToken(stepCtx, f.cfg.AppID)
	cancel()
	if err != nil {
		return nil, &StepError{Step: StepToken, Err: err}
	}
	if user == nil || user.Token == "" {
		return nil, &StepError{Step: StepToken, Err: errors.New("failed to generate token")}
	}
	log.Debug().Str("identity", string(s.Identity)).Msg("issued anonymous avatar token")

	stepCtx, cancel = f.step(ctx)
	templates, err := f.avatars.ListTemplates(stepCtx, user.Token)
	cancel()
	if err != nil {
		if errors.Is(err, readyplayerme.ErrInvalidResponse) {
			err = fmt.Errorf("invalid templates response: %w", err)
		}
		return nil, &StepError{Step: StepTemplates, Err: err}
	}

	offered := set.FromSlice(templates, func(t readyplayerme.Template) string { return t.ID })
	log.Debug().Str("identity", string(s.Identity)).Int("templates", offered.Size()).Msg("listed avatar templates")

	return &Attempt{
		Identity:  s.Identity,
		Templates: templates,
		token:     user.Token,
		offered:   offered,
	}, nil
}

// Complete creates a draft from the chosen template, promotes it, records it
// and rechecks the gate. The record is written only after promotion succeeds.
func (f *Flow) Complete(ctx context.Context, s *session.Session, a *Attempt, templateID string) (*Result, error) {
	if s == nil {
		return nil, session.ErrNoSession
	}
	if a == nil || a.Identity != s.Identity {
		return nil, ErrAttemptMismatch
	}
	if templateID == "" || !a.offered.Contains(templateID) {
		return nil, ErrTemplateNotChosen
	}

	stepCtx, cancel := f.step(ctx)
	draft, err := f.avatars.CreateDraft(stepCtx, templateID, a.token)
	cancel()
	if err != nil {
		return nil, &StepError{Step: StepDraft, Err: err}
	}
	if draft == nil || draft.ID == "" {
		return nil, &StepError{Step: StepDraft, Err: errors.New("avatar api returned no draft id")}
	}
	log.Debug().Str("identity", string(s.Identity)).Str("draft", draft.ID).Msg("created draft avatar")

	stepCtx, cancel = f.step(ctx)
	err = f.avatars.PromoteDraft(stepCtx, draft.ID, a.token)
	cancel()
	if err != nil {
		f.discard(ctx, draft.ID, a.token)
		return nil, &StepError{Step: StepPromote, Err: fmt.Errorf("failed to save avatar permanently: %w", err)}
	}

	stepCtx, cancel = f.step(ctx)
	err = f.records.Insert(stepCtx, s, draft.ID)
	cancel()
	if err != nil {
		f.discard(ctx, draft.ID, a.token)
		if errors.Is(err, record.ErrConflict) {
			err = fmt.Errorf("an avatar is already saved for this account: %w", err)
		}
		return nil, &StepError{Step: StepRecord, Err: err}
	}

	return &Result{
		AvatarID: draft.ID,
		Decision: f.completer.Recheck(ctx, s),
	}, nil
}

func (f *Flow) step(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.cfg.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.cfg.StepTimeout)
}

// discard removes a draft that will never be recorded. Failures are only
// logged; the caller's outcome does not change.
func (f *Flow) discard(ctx context.Context, avatarID, token string) {
	if !f.cfg.DiscardOrphans {
		return
	}
	stepCtx, cancel := f.step(context.WithoutCancel(ctx))
	defer cancel()
	if err := f.avatars.DeleteAvatar(stepCtx, avatarID, token); err != nil {
		slog.With("error", err.Error()).With("avatar", avatarID).Warn("failed to discard orphaned draft")
		return
	}
	log.Debug().Str("avatar", avatarID).Msg("discarded orphaned draft")
}
