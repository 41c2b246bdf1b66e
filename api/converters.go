package api

import (
	"engame/clients/readyplayerme"
	"engame/services/gate"
	"engame/services/session"
	"engame/utils"
)

func FromSession(s *session.Session) AuthResponse {
	return AuthResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		Identity:     string(s.Identity),
		Email:        utils.NonZero(s.Email),
	}
}

func FromDecision(d gate.Decision) GateResponse {
	return GateResponse{
		State:       GateState(d.State),
		Identity:    utils.NonZero(string(d.Identity)),
		AvatarId:    utils.NonZero(d.AvatarID),
		Retryable:   utils.NonZero(d.Retryable),
		LookupError: utils.NonZero(d.LookupError),
	}
}

func FromTemplates(templates []readyplayerme.Template) []Template {
	result := make([]Template, 0, len(templates))
	for _, t := range templates {
		result = append(result, Template{
			Id:       t.ID,
			Gender:   utils.NonZero(t.Gender),
			ImageUrl: utils.NonZero(t.ImageURL),
		})
	}
	return result
}

func FromAssets(assets []readyplayerme.Asset) []Asset {
	result := make([]Asset, 0, len(assets))
	for _, a := range assets {
		result = append(result, Asset{
			Id:      a.ID,
			Name:    utils.NonZero(a.Name),
			IconUrl: utils.NonZero(a.IconURL),
		})
	}
	return result
}

func ErrorNotice(message string) Notice {
	return Notice{Title: "Error", Message: message}
}

func SuccessNotice(message string) Notice {
	return Notice{Title: "Success", Message: message}
}

// SignInNotice is an error after which the client returns to sign in.
func SignInNotice(message string) Notice {
	n := ErrorNotice(message)
	n.Redirect = utils.ToPointer(SignInRedirect)
	return n
}
