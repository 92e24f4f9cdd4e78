package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sprite-ai/revify/internal/model"
)

// FileTree returns the flat file snapshot of a session.
func (c *Client) FileTree(ctx context.Context, sessionID string) ([]model.FileNode, error) {
	var out []model.FileNode
	if err := c.call(ctx, http.MethodGet, sessionPath(sessionID, "tree"), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FileContent returns the text of one file. Files the backend refuses to
// serve because of their size yield an error matching ErrFileTooLarge.
func (c *Client) FileContent(ctx context.Context, sessionID, path string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	q := url.Values{"path": {path}}
	if err := c.call(ctx, http.MethodGet, sessionPath(sessionID, "file"), q, nil, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}
