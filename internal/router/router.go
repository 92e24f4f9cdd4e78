// Package router maps in-app paths to screens and decides whether a
// protected screen may be shown.
package router

import (
	"errors"
	"net/url"
	"strings"

	"github.com/sprite-ai/revify/internal/model"
)

// Name identifies a screen.
type Name int

const (
	NotFound Name = iota
	Home
	Login
	Join
	Sessions
	SessionDetail
)

func (n Name) String() string {
	switch n {
	case Home:
		return "home"
	case Login:
		return "login"
	case Join:
		return "join"
	case Sessions:
		return "sessions"
	case SessionDetail:
		return "session"
	default:
		return "not-found"
	}
}

// Route is a matched path.
type Route struct {
	Name      Name
	Path      string
	Params    map[string]string
	Query     url.Values
	Protected bool
}

// Param returns a path parameter, or "".
func (r Route) Param(key string) string { return r.Params[key] }

// Match resolves path (which may carry a query string) to a route. Unknown
// paths resolve to NotFound.
func Match(path string) Route {
	raw, query, _ := strings.Cut(path, "?")
	q, _ := url.ParseQuery(query)
	if raw == "" {
		raw = "/"
	}
	r := Route{Name: NotFound, Path: path, Query: q}

	segs := strings.Split(strings.Trim(raw, "/"), "/")
	switch {
	case raw == "/":
		r.Name = Home
	case len(segs) == 1 && segs[0] == "login":
		r.Name = Login
	case len(segs) == 2 && segs[0] == "join" && segs[1] != "":
		r.Name = Join
		r.Params = map[string]string{"token": segs[1]}
	case len(segs) == 1 && segs[0] == "sessions":
		r.Name = Sessions
		r.Protected = true
	case len(segs) == 2 && segs[0] == "sessions" && segs[1] != "":
		r.Name = SessionDetail
		r.Params = map[string]string{"id": segs[1]}
		r.Protected = true
	}
	return r
}

// LoginPath is the login route that returns to returnTo afterwards.
func LoginPath(returnTo string) string {
	if returnTo == "" {
		return "/login"
	}
	return "/login?" + url.Values{"returnTo": {returnTo}}.Encode()
}

// JoinPath is the route that redeems an invite token.
func JoinPath(token string) string { return "/join/" + url.PathEscape(token) }

// SessionPath is the detail route of a session.
func SessionPath(id string) string { return "/sessions/" + url.PathEscape(id) }

// ErrNoInviteToken is returned by ShareLink for a private session that has
// no invite token yet.
var ErrNoInviteToken = errors.New("invite token not found, generate one first")

// ShareLink is the link others use to open s: the join link for private
// sessions, the detail page otherwise.
func ShareLink(webURL string, s model.Session) (string, error) {
	base := strings.TrimRight(webURL, "/")
	if s.Visibility == model.VisibilityPrivate {
		if s.InviteToken == "" {
			return "", ErrNoInviteToken
		}
		return base + JoinPath(s.InviteToken), nil
	}
	return base + SessionPath(s.ID), nil
}

// AuthState is what the guard needs to know about the current user.
type AuthState interface {
	Loading() bool
	SignedIn() bool
}

// Outcome is the guard's verdict.
type Outcome int

const (
	Render Outcome = iota
	Wait
	Redirect
)

// Decision is the result of guarding a route.
type Decision struct {
	Outcome Outcome
	// Target is set for Redirect.
	Target string
}

// Guard decides what to do with route given the auth state. While the
// identity check is pending the answer is Wait, never Redirect.
func Guard(auth AuthState, route Route) Decision {
	if !route.Protected {
		return Decision{Outcome: Render}
	}
	if auth.Loading() {
		return Decision{Outcome: Wait}
	}
	if !auth.SignedIn() {
		return Decision{Outcome: Redirect, Target: LoginPath(route.Path)}
	}
	return Decision{Outcome: Render}
}
