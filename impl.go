package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"engame/api"
	"engame/clients/readyplayerme"
	"engame/services/gate"
	"engame/services/onboarding"
	"engame/services/profile"
	"engame/services/record"
	"engame/services/screen"
	"engame/services/session"
	"engame/validator"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ensure that we've conformed to the `ServerInterface` with a compile-time check
var _ api.ServerInterface = (*Server)(nil)

type Server struct {
	Sessions   session.Service
	Gate       *gate.Gate
	Onboarding *onboarding.Flow
	Profile    profile.Service

	onboardingScreens *screen.Registry[*onboarding.Attempt]
	profileScreens    *screen.Registry[*profile.Workspace]
}

func NewServer(sessions session.Service, g *gate.Gate, flow *onboarding.Flow, profiles profile.Service, cfg ServerConfig) *Server {
	return &Server{
		Sessions:          sessions,
		Gate:              g,
		Onboarding:        flow,
		Profile:           profiles,
		onboardingScreens: screen.NewRegistry[*onboarding.Attempt](cfg.MountTTL),
		profileScreens:    screen.NewRegistry[*profile.Workspace](cfg.MountTTL),
	}
}

func (s *Server) GetPing(c *gin.Context) {
	c.JSON(http.StatusOK, api.Pong{Ping: "pong"})
}

func (s *Server) GetOpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/x-yaml", api.Document())
}

func (s *Server) SignIn(c *gin.Context) {
	var body api.Credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorNotice(err.Error()))
		return
	}
	sess, err := s.Sessions.SignIn(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromSession(sess))
}

func (s *Server) SignUp(c *gin.Context) {
	var body api.Credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorNotice(err.Error()))
		return
	}
	result, err := s.Sessions.SignUp(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	if result.ConfirmationRequired || result.Session == nil {
		notice := api.SuccessNotice("Please check your email to confirm your account.")
		c.JSON(http.StatusOK, api.SignUpResponse{ConfirmationRequired: true, Notice: &notice})
		return
	}
	resp := api.FromSession(result.Session)
	c.JSON(http.StatusCreated, api.SignUpResponse{Session: &resp})
}

func (s *Server) Refresh(c *gin.Context) {
	var body api.RefreshRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorNotice(err.Error()))
		return
	}
	sess, err := s.Sessions.Refresh(c.Request.Context(), body.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromSession(sess))
}

func (s *Server) SignOut(c *gin.Context) {
	sess, ok := validator.FromContext(c)
	if !ok {
		respondError(c, session.ErrNoSession)
		return
	}
	dropped := s.onboardingScreens.UnmountAll(sess.Identity) + s.profileScreens.UnmountAll(sess.Identity)
	log.Debug().Str("identity", string(sess.Identity)).Int("screens", dropped).Msg("signing out")
	// Screens and watches end even when the backend refuses; the client
	// still hears about the failure.
	if err := s.Sessions.SignOut(context.WithoutCancel(c.Request.Context()), sess); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetGate answers Unauthenticated for a missing or rejected token.
func (s *Server) GetGate(c *gin.Context) {
	sess, _ := validator.FromContext(c)
	c.JSON(http.StatusOK, api.FromDecision(s.Gate.Evaluate(c.Request.Context(), sess)))
}

func (s *Server) StreamGate(c *gin.Context) {
	sess, ok := validator.FromContext(c)
	if !ok {
		c.SSEvent("gate", api.FromDecision(gate.Decide(nil, nil, nil)))
		return
	}
	w, err := s.Gate.Watch(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	defer w.Close()

	done := c.Request.Context().Done()
	c.Stream(func(_ io.Writer) bool {
		select {
		case d, ok := <-w.C():
			if !ok {
				return false
			}
			c.SSEvent("gate", api.FromDecision(d))
			return d.State != gate.Unauthenticated
		case <-done:
			return false
		}
	})
}

func (s *Server) GetMe(c *gin.Context) {
	sess, ok := validator.FromContext(c)
	if !ok {
		respondError(c, session.ErrNoSession)
		return
	}
	email := sess.Email
	c.JSON(http.StatusOK, api.Me{Identity: string(sess.Identity), Email: &email})
}

func (s *Server) OpenOnboarding(c *gin.Context) {
	sess, ok := validator.FromContext(c)
	if !ok {
		respondError(c, session.ErrNoSession)
		return
	}
	attempt, err := s.Onboarding.Start(context.WithoutCancel(c.Request.Context()), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	mountID := s.onboardingScreens.Mount(sess.Identity, attempt)
	c.JSON(http.StatusCreated, api.OnboardingScreen{
		MountId:   mountID,
		Templates: api.FromTemplates(attempt.Templates),
	})
}

func (s *Server) SelectTemplate(c *gin.Context, mountId api.MountId) {
	sess, ok := validator.FromContext(c)
	if !ok {
		respondError(c, session.ErrNoSession)
		return
	}
	var body api.SelectTemplateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorNotice(err.Error()))
		return
	}
	attempt, err := s.onboardingScreens.Get(mountId, sess.Identity)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.Onboarding.Complete(context.WithoutCancel(c.Request.Context()), sess, attempt, body.TemplateId)
	if !s.onboardingScreens.Alive(mountId) {
		dropLate(c, "onboarding", mountId, err)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	_ = s.onboardingScreens.Unmount(mountId, sess.Identity)
	c.JSON(http.StatusOK, api.OnboardingResult{
		AvatarId: result.AvatarID,
		Gate:     api.FromDecision(result.Decision),
		Notice:   api.SuccessNotice("Avatar saved permanently!"),
	})
}

func (s *Server) CloseOnboarding(c *gin.Context, mountId api.MountId) {
	s.unmount(c, mountId, s.onboardingScreens.Unmount)
}

func (s *Server) OpenProfile(c *gin.Context) {
	sess, ok := validator.FromContext(c)
	if !ok {
		respondError(c, session.ErrNoSession)
		return
	}
	ws, err := s.Profile.Open(context.WithoutCancel(c.Request.Context()), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	mountID := s.profileScreens.Mount(sess.Identity, ws)
	c.JSON(http.StatusCreated, api.ProfileScreen{
		MountId:  mountID,
		AvatarId: ws.AvatarID,
		Assets:   api.FromAssets(ws.Assets),
	})
}

func (s *Server) EquipAsset(c *gin.Context, mountId api.MountId) {
	sess, ok := validator.FromContext(c)
	if !ok {
		respondError(c, session.ErrNoSession)
		return
	}
	var body api.EquipRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorNotice(err.Error()))
		return
	}
	ws, err := s.profileScreens.Get(mountId, sess.Identity)
	if err != nil {
		respondError(c, err)
		return
	}

	err = s.Profile.Equip(context.WithoutCancel(c.Request.Context()), sess, ws, body.AssetId)
	if !s.profileScreens.Alive(mountId) {
		dropLate(c, "profile", mountId, err)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SuccessNotice("Asset equipped successfully!"))
}

func (s *Server) CloseProfile(c *gin.Context, mountId api.MountId) {
	s.unmount(c, mountId, s.profileScreens.Unmount)
}

func (s *Server) unmount(c *gin.Context, mountId api.MountId, unmount func(string, session.Identity) error) {
	sess, ok := validator.FromContext(c)
	if !ok {
		respondError(c, session.ErrNoSession)
		return
	}
	if err := unmount(mountId, sess.Identity); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// dropLate answers a request whose screen was closed while its remote calls
// were still running. The outcome is logged and not shown.
func dropLate(c *gin.Context, screenName string, mountId api.MountId, err error) {
	logger := slog.With("screen", screenName).With("mount", mountId)
	if err != nil {
		logger = logger.With("error", err.Error())
	}
	logger.Info("dropping result for closed screen")
	c.JSON(http.StatusGone, api.ErrorNotice("This screen was closed before the request finished."))
}

// respondError converts err into a notice. Every handler error ends here.
func respondError(c *gin.Context, err error) {
	status, notice := toNotice(err)
	if status >= http.StatusInternalServerError {
		slog.With("error", err.Error()).With("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, notice)
}

func toNotice(err error) (int, api.Notice) {
	var (
		authErr *session.AuthError
		stepErr *onboarding.StepError
		apiErr  *readyplayerme.APIError
	)
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized, api.SignInNotice("User not authenticated")
	case errors.Is(err, session.ErrMissingCredentials):
		return http.StatusBadRequest, api.ErrorNotice(err.Error())
	case errors.As(err, &authErr):
		status := authErr.Status
		if status < http.StatusBadRequest || status >= http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		return status, api.ErrorNotice(authErr.Message)
	case errors.Is(err, onboarding.ErrTemplateNotChosen), errors.Is(err, profile.ErrAssetNotListed):
		return http.StatusBadRequest, api.ErrorNotice(err.Error())
	case errors.Is(err, onboarding.ErrAttemptMismatch), errors.Is(err, profile.ErrWorkspaceMismatch),
		errors.Is(err, screen.ErrForbidden):
		return http.StatusForbidden, api.ErrorNotice(err.Error())
	case errors.Is(err, screen.ErrNotMounted):
		return http.StatusNotFound, api.ErrorNotice("This screen is no longer open. Please try again.")
	case errors.Is(err, profile.ErrNoAvatar):
		return http.StatusNotFound, api.ErrorNotice(err.Error())
	case errors.As(err, &stepErr):
		if errors.Is(err, record.ErrConflict) {
			return http.StatusConflict, api.ErrorNotice(stepErr.Notice())
		}
		return http.StatusBadGateway, api.ErrorNotice(stepErr.Notice())
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, api.ErrorNotice(err.Error())
	}
	return http.StatusInternalServerError, api.ErrorNotice(err.Error())
}
