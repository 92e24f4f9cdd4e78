package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sprite-ai/revify/internal/model"
)

// Me asks the backend who the current user is. It returns ErrUnauthorized
// when nobody is signed in.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	// The timestamp defeats intermediary caches.
	q := url.Values{"_t": {strconv.FormatInt(time.Now().UnixMilli(), 10)}}
	env, err := c.do(ctx, http.MethodGet, "/auth/me", q, nil, "")
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode < 300 {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, Message(err, "not signed in"))
		}
		return nil, err
	}
	if env.Success == nil || len(env.User) == 0 || string(env.User) == "null" {
		return nil, ErrUnauthorized
	}
	var u model.User
	if err := json.Unmarshal(env.User, &u); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	return &u, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}
