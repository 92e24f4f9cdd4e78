package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sprite-ai/revify/internal/model"
)

// NewComment is the body of a create-comment request. Replies set
// ParentComment and reuse the root's anchor.
type NewComment struct {
	FilePath      string `json:"filePath"`
	StartLine     int    `json:"startLine"`
	EndLine       int    `json:"endLine"`
	Content       string `json:"content"`
	ParentComment string `json:"parentComment,omitempty"`
}

// CommentUpdate is a partial comment update.
type CommentUpdate struct {
	Content  *string `json:"content,omitempty"`
	Resolved *bool   `json:"resolved,omitempty"`
}

// ListComments returns every comment in a session, across all files.
func (c *Client) ListComments(ctx context.Context, sessionID string) ([]model.Comment, error) {
	var out []model.Comment
	if err := c.call(ctx, http.MethodGet, sessionPath(sessionID, "comments"), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateComment posts a new root comment or reply.
func (c *Client) CreateComment(ctx context.Context, sessionID string, in NewComment) (*model.Comment, error) {
	var out model.Comment
	if err := c.call(ctx, http.MethodPost, sessionPath(sessionID, "comments"), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateComment applies a partial update to a comment.
func (c *Client) UpdateComment(ctx context.Context, sessionID, commentID string, in CommentUpdate) (*model.Comment, error) {
	var out model.Comment
	path := sessionPath(sessionID, "comments", url.PathEscape(commentID))
	if err := c.call(ctx, http.MethodPatch, path, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetResolved toggles the resolved flag of a comment.
func (c *Client) SetResolved(ctx context.Context, sessionID, commentID string, resolved bool) (*model.Comment, error) {
	return c.UpdateComment(ctx, sessionID, commentID, CommentUpdate{Resolved: &resolved})
}
