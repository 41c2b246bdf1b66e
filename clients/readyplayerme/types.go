package readyplayerme

import (
	"errors"
	"fmt"
)

var ErrInvalidResponse = errors.New("unexpected response from avatar api")

// AnonymousUser is the short lived account the avatar API issues per mount.
type AnonymousUser struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type Template struct {
	ID       string `json:"id"`
	Gender   string `json:"gender"`
	ImageURL string `json:"imageUrl"`
}

type Draft struct {
	ID string `json:"id"`
}

type Asset struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

// APIError is a non 2xx answer from the avatar API.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Err     string `json:"error"`
}

func (a *APIError) Error() string {
	msg := a.Message
	if msg == "" {
		msg = a.Err
	}
	if msg == "" {
		return fmt.Sprintf("avatar api returned status %d", a.Status)
	}
	return fmt.Sprintf("avatar api returned status %d: %s", a.Status, msg)
}

type createUserRequest struct {
	ApplicationID string `json:"applicationId"`
}

type createDraftRequest struct {
	Data struct {
		Partner  string `json:"partner"`
		BodyType string `json:"bodyType"`
	} `json:"data"`
}

type equipRequest struct {
	Data struct {
		AssetID string `json:"assetId"`
	} `json:"data"`
}
