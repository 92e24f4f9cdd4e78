package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sprite-ai/revify/internal/model"
)

// CreateSessionInput is the body of a create-session request.
type CreateSessionInput struct {
	Title             string                  `json:"title"`
	Description       string                  `json:"description,omitempty"`
	Visibility        model.Visibility        `json:"visibility"`
	CommentPermission model.CommentPermission `json:"commentPermission"`
}

// SessionSettings is a partial session update. Nil fields are left unchanged.
type SessionSettings struct {
	Title             *string                  `json:"title,omitempty"`
	Description       *string                  `json:"description,omitempty"`
	Visibility        *model.Visibility        `json:"visibility,omitempty"`
	CommentPermission *model.CommentPermission `json:"commentPermission,omitempty"`
}

// ListSessions returns the sessions visible to the current user.
func (c *Client) ListSessions(ctx context.Context) ([]model.Session, error) {
	var out []model.Session
	if err := c.call(ctx, http.MethodGet, "/sessions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession creates a session. An empty comment permission is sent as
// model.DefaultCommentPermission.
func (c *Client) CreateSession(ctx context.Context, in CreateSessionInput) (*model.Session, error) {
	if in.CommentPermission == "" {
		in.CommentPermission = model.DefaultCommentPermission
	}
	var out model.Session
	if err := c.call(ctx, http.MethodPost, "/sessions", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches one session by id.
func (c *Client) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var out model.Session
	if err := c.call(ctx, http.MethodGet, sessionPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession removes a session and everything it owns.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, sessionPath(id), nil, nil, nil)
}

// UpdateSessionSettings applies a partial update and returns the new session.
func (c *Client) UpdateSessionSettings(ctx context.Context, id string, in SessionSettings) (*model.Session, error) {
	var out model.Session
	if err := c.call(ctx, http.MethodPatch, sessionPath(id, "settings"), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type inviteTokenData struct {
	InviteToken *string `json:"inviteToken"`
}

// GetInviteToken returns the session's invite token, or "" when none exists.
func (c *Client) GetInviteToken(ctx context.Context, id string) (string, error) {
	var out inviteTokenData
	if err := c.call(ctx, http.MethodGet, sessionPath(id, "invite-token"), nil, nil, &out); err != nil {
		return "", err
	}
	if out.InviteToken == nil {
		return "", nil
	}
	return *out.InviteToken, nil
}

// RefreshInviteToken creates or rotates the session's invite token.
func (c *Client) RefreshInviteToken(ctx context.Context, id string) (string, error) {
	var out inviteTokenData
	if err := c.call(ctx, http.MethodPost, sessionPath(id, "invite-token"), nil, nil, &out); err != nil {
		return "", err
	}
	if out.InviteToken == nil {
		return "", nil
	}
	return *out.InviteToken, nil
}

// JoinSession redeems an invite token and returns the joined session's id.
func (c *Client) JoinSession(ctx context.Context, token string) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.call(ctx, http.MethodPost, "/sessions/join/"+url.PathEscape(token), nil, nil, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}
