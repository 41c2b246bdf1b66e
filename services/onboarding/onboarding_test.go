package onboarding

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"engame/clients/readyplayerme"
	"engame/services/gate"
	"engame/services/record"
	"engame/services/session"
)

type fakeAvatars struct {
	mu        sync.Mutex
	calls     []string
	user      *readyplayerme.AnonymousUser
	tokenErr  error
	templates []readyplayerme.Template
	listErr   error
	draft     *readyplayerme.Draft
	draftErr  error
	promote   error
	deleteErr error
}

func newFakeAvatars() *fakeAvatars {
	return &fakeAvatars{
		user:      &readyplayerme.AnonymousUser{ID: "anon", Token: "tok"},
		templates: []readyplayerme.Template{{ID: "T1", Gender: "female"}, {ID: "T2", Gender: "male"}},
		draft:     &readyplayerme.Draft{ID: "D1"},
	}
}

func (f *fakeAvatars) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAvatars) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAvatars) IssueAnonymousToken(_ context.Context, appID string) (*readyplayerme.AnonymousUser, error) {
	f.record("token:" + appID)
	return f.user, f.tokenErr
}

func (f *fakeAvatars) ListTemplates(_ context.Context, token string) ([]readyplayerme.Template, error) {
	f.record("templates:" + token)
	return f.templates, f.listErr
}

func (f *fakeAvatars) CreateDraft(_ context.Context, templateID, token string) (*readyplayerme.Draft, error) {
	f.record("draft:" + templateID)
	return f.draft, f.draftErr
}

func (f *fakeAvatars) PromoteDraft(_ context.Context, avatarID, token string) error {
	f.record("promote:" + avatarID)
	return f.promote
}

func (f *fakeAvatars) DeleteAvatar(_ context.Context, avatarID, token string) error {
	f.record("delete:" + avatarID)
	return f.deleteErr
}

type insert struct {
	identity  session.Identity
	reference string
}

type countingStore struct {
	record.Store
	mu      sync.Mutex
	inserts []insert
	err     error
}

func (c *countingStore) Insert(ctx context.Context, s *session.Session, reference string) error {
	c.mu.Lock()
	c.inserts = append(c.inserts, insert{s.Identity, reference})
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.Store.Insert(ctx, s, reference)
}

var u1 = &session.Session{Identity: "U1", AccessToken: "t1"}

func newFlow(avatars *fakeAvatars, discard bool) (*Flow, *countingStore, *gate.Gate) {
	store := &countingStore{Store: record.NewMemoryStore()}
	g := gate.New(store, session.NewBus(), time.Second)
	f := NewFlow(avatars, store, g, Config{AppID: "app", StepTimeout: time.Second, DiscardOrphans: discard})
	return f, store, g
}

func TestStartRequiresSession(t *testing.T) {
	avatars := newFakeAvatars()
	f, _, _ := newFlow(avatars, true)
	if _, err := f.Start(context.Background(), nil); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Start() error = %v, want ErrNoSession", err)
	}
	if len(avatars.Calls()) != 0 {
		t.Errorf("calls = %v, want none", avatars.Calls())
	}
}

func TestStartMissingTokenAbortsBeforeTemplates(t *testing.T) {
	avatars := newFakeAvatars()
	avatars.user = &readyplayerme.AnonymousUser{ID: "anon"}
	f, _, _ := newFlow(avatars, true)

	_, err := f.Start(context.Background(), u1)
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepToken {
		t.Fatalf("Start() error = %v, want token step error", err)
	}
	if stepErr.Notice() != "failed to generate token" {
		t.Errorf("Notice() = %q", stepErr.Notice())
	}
	if got := avatars.Calls(); !reflect.DeepEqual(got, []string{"token:app"}) {
		t.Errorf("calls = %v, want only the token call", got)
	}
}

func TestTemplateFailureNeverCreatesDraft(t *testing.T) {
	avatars := newFakeAvatars()
	avatars.listErr = readyplayerme.ErrInvalidResponse
	f, store, _ := newFlow(avatars, true)

	_, err := f.Start(context.Background(), u1)
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepTemplates {
		t.Fatalf("Start() error = %v, want templates step error", err)
	}
	if !errors.Is(err, readyplayerme.ErrInvalidResponse) {
		t.Errorf("error should wrap ErrInvalidResponse")
	}
	for _, call := range avatars.Calls() {
		if call == "draft:T1" || call == "draft:T2" {
			t.Errorf("draft created after template failure")
		}
	}
	if len(store.inserts) != 0 {
		t.Errorf("inserts = %v, want none", store.inserts)
	}
}

func TestCompleteHappyPath(t *testing.T) {
	ctx := context.Background()
	avatars := newFakeAvatars()
	f, store, g := newFlow(avatars, true)

	if d := g.Evaluate(ctx, u1); d.State != gate.PendingOnboarding {
		t.Fatalf("initial gate = %+v", d)
	}
	a, err := f.Start(ctx, u1)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(a.Templates) != 2 {
		t.Errorf("templates = %v", a.Templates)
	}
	res, err := f.Complete(ctx, u1, a, "T1")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if want := []insert{{"U1", "D1"}}; !reflect.DeepEqual(store.inserts, want) {
		t.Errorf("inserts = %v, want %v", store.inserts, want)
	}
	if res.AvatarID != "D1" || res.Decision.State != gate.Onboarded || res.Decision.AvatarID != "D1" {
		t.Errorf("Complete() = %+v", res)
	}
	want := []string{"token:app", "templates:tok", "draft:T1", "promote:D1"}
	if got := avatars.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestCompleteRejectsInput(t *testing.T) {
	ctx := context.Background()
	avatars := newFakeAvatars()
	f, _, _ := newFlow(avatars, true)
	a, err := f.Start(ctx, u1)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	tests := []struct {
		name       string
		session    *session.Session
		templateID string
		want       error
	}{
		{"no session", nil, "T1", session.ErrNoSession},
		{"other identity", &session.Session{Identity: "U2"}, "T1", ErrAttemptMismatch},
		{"nothing selected", u1, "", ErrTemplateNotChosen},
		{"template not offered", u1, "T9", ErrTemplateNotChosen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.Complete(ctx, tt.session, a, tt.templateID); !errors.Is(err, tt.want) {
				t.Errorf("Complete() error = %v, want %v", err, tt.want)
			}
		})
	}
	if got := len(avatars.Calls()); got != 2 {
		t.Errorf("calls after rejected completes = %v", avatars.Calls())
	}
}

func TestNoRecordWithoutPromotion(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*fakeAvatars)
		step     Step
		discards bool
	}{
		{
			name:  "draft fails",
			setup: func(a *fakeAvatars) { a.draftErr = &readyplayerme.APIError{Status: 500, Message: "boom"} },
			step:  StepDraft,
		},
		{
			name:  "draft without id",
			setup: func(a *fakeAvatars) { a.draft = &readyplayerme.Draft{} },
			step:  StepDraft,
		},
		{
			name:     "promote fails",
			setup:    func(a *fakeAvatars) { a.promote = &readyplayerme.APIError{Status: 502} },
			step:     StepPromote,
			discards: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			avatars := newFakeAvatars()
			tt.setup(avatars)
			f, store, g := newFlow(avatars, true)
			a, err := f.Start(ctx, u1)
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			_, err = f.Complete(ctx, u1, a, "T2")
			var stepErr *StepError
			if !errors.As(err, &stepErr) || stepErr.Step != tt.step {
				t.Fatalf("Complete() error = %v, want step %s", err, tt.step)
			}
			if len(store.inserts) != 0 {
				t.Errorf("inserts = %v, want none", store.inserts)
			}
			calls := avatars.Calls()
			discarded := calls[len(calls)-1] == "delete:D1"
			if discarded != tt.discards {
				t.Errorf("calls = %v, discard expected %v", calls, tt.discards)
			}
			if d := g.Evaluate(ctx, u1); d.State != gate.PendingOnboarding {
				t.Errorf("gate after failure = %+v", d)
			}
		})
	}
}

func TestRecordFailureDiscardsDraft(t *testing.T) {
	ctx := context.Background()
	avatars := newFakeAvatars()
	avatars.deleteErr = errors.New("delete failed")
	f, store, _ := newFlow(avatars, true)
	store.err = record.ErrConflict

	a, err := f.Start(ctx, u1)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_, err = f.Complete(ctx, u1, a, "T1")
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepRecord {
		t.Fatalf("Complete() error = %v, want record step error", err)
	}
	if !errors.Is(err, record.ErrConflict) {
		t.Errorf("error should wrap ErrConflict")
	}
	calls := avatars.Calls()
	if calls[len(calls)-1] != "delete:D1" {
		t.Errorf("calls = %v, want draft discarded", calls)
	}
}

func TestDiscardDisabled(t *testing.T) {
	ctx := context.Background()
	avatars := newFakeAvatars()
	avatars.promote = errors.New("nope")
	f, _, _ := newFlow(avatars, false)
	a, err := f.Start(ctx, u1)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := f.Complete(ctx, u1, a, "T1"); err == nil {
		t.Fatal("Complete() error = nil")
	}
	for _, call := range avatars.Calls() {
		if call == "delete:D1" {
			t.Errorf("draft discarded with discard disabled")
		}
	}
}

func TestStepErrorNotice(t *testing.T) {
	tests := []struct {
		err  *StepError
		want string
	}{
		{&StepError{Step: StepToken}, "Failed to initialize onboarding."},
		{&StepError{Step: StepTemplates, Err: errors.New("")}, "Failed to initialize onboarding."},
		{&StepError{Step: StepPromote}, "Failed to create avatar."},
		{&StepError{Step: StepDraft, Err: errors.New("quota exceeded")}, "quota exceeded"},
	}
	for _, tt := range tests {
		if got := tt.err.Notice(); got != tt.want {
			t.Errorf("Notice() for %s = %q, want %q", tt.err.Step, got, tt.want)
		}
	}
}
