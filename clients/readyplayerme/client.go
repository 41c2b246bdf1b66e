package readyplayerme

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAPIURL = "https://api.readyplayer.me"

	fullBody          = "fullbody"
	usableByUserInApp = "usable-by-user-and-app"
)

type Config struct {
	// Subdomain is the partner subdomain; anonymous users are created on
	// https://<subdomain>.readyplayer.me.
	Subdomain string
	// APIURL defaults to DefaultAPIURL.
	APIURL string
	// AccountURL overrides the subdomain host, used by tests.
	AccountURL string
	Timeout    time.Duration
}

// Client calls the Ready Player Me REST API. Every call carries the
// per-mount anonymous token the caller passes in.
type Client struct {
	http       *resty.Client
	apiURL     string
	accountURL string
	partner    string
}

func NewClient(cfg Config) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	accountURL := cfg.AccountURL
	if accountURL == "" {
		accountURL = fmt.Sprintf("https://%s.readyplayer.me", cfg.Subdomain)
	}
	hc := resty.New().
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "engame-backend")
	if cfg.Timeout > 0 {
		hc.SetTimeout(cfg.Timeout)
	}
	return &Client{
		http:       hc,
		apiURL:     strings.TrimRight(apiURL, "/"),
		accountURL: strings.TrimRight(accountURL, "/"),
		partner:    cfg.Subdomain,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// decodeData unmarshals the data member of an envelope. List endpoints must
// answer with an array.
func decodeData(e *envelope, wantList bool, into any) error {
	raw := bytes.TrimSpace(e.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: missing data", ErrInvalidResponse)
	}
	if wantList && raw[0] != '[' {
		return fmt.Errorf("%w: data is not a list", ErrInvalidResponse)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidResponse, err.Error())
	}
	return nil
}

func toAPIError(resp *resty.Response, apiErr *APIError) *APIError {
	apiErr.Status = resp.StatusCode()
	return apiErr
}

func (c *Client) IssueAnonymousToken(ctx context.Context, appID string) (*AnonymousUser, error) {
	response := &envelope{}
	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createUserRequest{ApplicationID: appID}).
		SetResult(response).
		SetError(apiErr).
		Post(c.accountURL + "/api/users")
	if err != nil {
		return nil, fmt.Errorf("create anonymous user: %w", err)
	}
	if resp.IsError() {
		return nil, toAPIError(resp, apiErr)
	}
	user := &AnonymousUser{}
	if err := decodeData(response, false, user); err != nil {
		return nil, err
	}
	log.Debug().Str("userId", user.ID).Msg("anonymous avatar api user created")
	return user, nil
}

func (c *Client) ListTemplates(ctx context.Context, token string) ([]Template, error) {
	response := &envelope{}
	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(response).
		SetError(apiErr).
		Get(c.apiURL + "/v2/avatars/templates")
	if err != nil {
		return nil, fmt.Errorf("fetch avatar templates: %w", err)
	}
	if resp.IsError() {
		return nil, toAPIError(resp, apiErr)
	}
	templates := make([]Template, 0)
	if err := decodeData(response, true, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (c *Client) CreateDraft(ctx context.Context, templateID, token string) (*Draft, error) {
	body := createDraftRequest{}
	body.Data.Partner = c.partner
	body.Data.BodyType = fullBody
	response := &envelope{}
	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("templateId", templateID).
		SetBody(body).
		SetResult(response).
		SetError(apiErr).
		Post(c.apiURL + "/v2/avatars/templates/{templateId}")
	if err != nil {
		return nil, fmt.Errorf("create draft avatar: %w", err)
	}
	if resp.IsError() {
		return nil, toAPIError(resp, apiErr)
	}
	draft := &Draft{}
	if err := decodeData(response, false, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// PromoteDraft saves a draft avatar permanently.
func (c *Client) PromoteDraft(ctx context.Context, avatarID, token string) error {
	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("avatarId", avatarID).
		SetError(apiErr).
		Put(c.apiURL + "/v2/avatars/{avatarId}")
	if err != nil {
		return fmt.Errorf("save avatar: %w", err)
	}
	if resp.IsError() {
		return toAPIError(resp, apiErr)
	}
	return nil
}

func (c *Client) DeleteAvatar(ctx context.Context, avatarID, token string) error {
	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("avatarId", avatarID).
		SetError(apiErr).
		Delete(c.apiURL + "/v2/avatars/{avatarId}")
	if err != nil {
		return fmt.Errorf("delete avatar: %w", err)
	}
	if resp.IsError() {
		return toAPIError(resp, apiErr)
	}
	return nil
}

func (c *Client) ListAssets(ctx context.Context, token, avatarID, appID string) ([]Asset, error) {
	response := &envelope{}
	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("X-APP-ID", appID).
		SetQueryParams(map[string]string{
			"filter":              usableByUserInApp,
			"filterApplicationId": appID,
			"filterUserId":        avatarID,
		}).
		SetResult(response).
		SetError(apiErr).
		Get(c.apiURL + "/v1/assets")
	if err != nil {
		return nil, fmt.Errorf("fetch assets: %w", err)
	}
	if resp.IsError() {
		return nil, toAPIError(resp, apiErr)
	}
	assets := make([]Asset, 0)
	if err := decodeData(response, true, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// EquipAsset binds an asset to an avatar. Only a 200 counts as success.
func (c *Client) EquipAsset(ctx context.Context, avatarID, assetID, token string) error {
	body := equipRequest{}
	body.Data.AssetID = assetID
	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("avatarId", avatarID).
		SetBody(body).
		SetError(apiErr).
		Put(c.apiURL + "/v1/avatars/{avatarId}/equip")
	if err != nil {
		return fmt.Errorf("equip asset: %w", err)
	}
	if resp.IsError() {
		return toAPIError(resp, apiErr)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: equip returned status %d", ErrInvalidResponse, resp.StatusCode())
	}
	return nil
}
