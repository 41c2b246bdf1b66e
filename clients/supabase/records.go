package supabase

import (
	"context"
	"fmt"
	"net/http"

	"engame/services/record"
	"engame/services/session"
)

var _ record.Store = (*Client)(nil)

// uniqueViolation is the Postgres error code for a duplicate primary key.
const uniqueViolation = "23505"

type avatarRow struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (c *Client) recordBearer(s *session.Session) string {
	if c.serviceKey != "" {
		return c.serviceKey
	}
	return s.AccessToken
}

func (c *Client) Get(ctx context.Context, s *session.Session) (*record.Avatar, error) {
	if s == nil {
		return nil, session.ErrNoSession
	}
	rows := make([]avatarRow, 0, 1)
	responseError := &restErrorResponse{}
	resp, err := c.request(c.recordBearer(s)).
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"id":     "eq." + string(s.Identity),
			"select": "id,url",
		}).
		SetResult(&rows).
		SetError(responseError).
		Get(avatarPath)
	if err != nil {
		return nil, fmt.Errorf("fetch avatar record: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch avatar record: status %d: %w", resp.StatusCode(), responseError)
	}
	if len(rows) == 0 {
		return nil, record.ErrNotFound
	}
	return &record.Avatar{ID: rows[0].ID, URL: rows[0].URL}, nil
}

func (c *Client) Insert(ctx context.Context, s *session.Session, reference string) error {
	if s == nil {
		return session.ErrNoSession
	}
	responseError := &restErrorResponse{}
	resp, err := c.request(c.recordBearer(s)).
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal").
		SetBody([]avatarRow{{ID: string(s.Identity), URL: reference}}).
		SetError(responseError).
		Post(avatarPath)
	if err != nil {
		return fmt.Errorf("insert avatar record: %w", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusConflict || responseError.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", record.ErrConflict, responseError.Error())
		}
		return fmt.Errorf("insert avatar record: status %d: %w", resp.StatusCode(), responseError)
	}
	return nil
}
