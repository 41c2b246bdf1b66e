package api

import "time"

const BearerAuthScopes = "bearerAuth.Scopes"

// GateState mirrors the three top level screens.
type GateState string

const (
	Unauthenticated                GateState = "Unauthenticated"
	AuthenticatedPendingOnboarding GateState = "AuthenticatedPendingOnboarding"
	AuthenticatedOnboarded         GateState = "AuthenticatedOnboarded"
)

// Redirect tells the client which screen to go to after a Notice.
type Redirect string

const SignInRedirect Redirect = "sign-in"

type MountId = string

type Pong struct {
	Ping string `json:"ping"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Identity     string    `json:"identity"`
	Email        *string   `json:"email,omitempty"`
}

type SignUpResponse struct {
	ConfirmationRequired bool          `json:"confirmationRequired"`
	Session              *AuthResponse `json:"session,omitempty"`
	Notice               *Notice       `json:"notice,omitempty"`
}

type GateResponse struct {
	State       GateState `json:"state"`
	Identity    *string   `json:"identity,omitempty"`
	AvatarId    *string   `json:"avatarId,omitempty"`
	Retryable   *bool     `json:"retryable,omitempty"`
	LookupError *string   `json:"lookupError,omitempty"`
}

type Me struct {
	Identity string  `json:"identity"`
	Email    *string `json:"email,omitempty"`
}

type Template struct {
	Id       string  `json:"id"`
	Gender   *string `json:"gender,omitempty"`
	ImageUrl *string `json:"imageUrl,omitempty"`
}

type OnboardingScreen struct {
	MountId   MountId    `json:"mountId"`
	Templates []Template `json:"templates"`
}

type SelectTemplateRequest struct {
	TemplateId string `json:"templateId"`
}

type OnboardingResult struct {
	AvatarId string       `json:"avatarId"`
	Gate     GateResponse `json:"gate"`
	Notice   Notice       `json:"notice"`
}

type Asset struct {
	Id      string  `json:"id"`
	Name    *string `json:"name,omitempty"`
	IconUrl *string `json:"iconUrl,omitempty"`
}

type ProfileScreen struct {
	MountId  MountId `json:"mountId"`
	AvatarId string  `json:"avatarId"`
	Assets   []Asset `json:"assets"`
}

type EquipRequest struct {
	AssetId string `json:"assetId"`
}

// Notice is what the client shows in an alert.
type Notice struct {
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Redirect *Redirect `json:"redirect,omitempty"`
}
