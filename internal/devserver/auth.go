package devserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sprite-ai/revify/internal/model"
)

type ctxKey int

const userKey ctxKey = iota

func userFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}

func (s *Server) currentUser(r *http.Request) (*model.User, bool) {
	ck, err := r.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return nil, false
	}
	return s.store.userForLogin(ck.Value)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.currentUser(r)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// SignIn creates (or reuses) a user and returns a session cookie for them.
func (s *Server) SignIn(displayName string) (*http.Cookie, model.User) {
	token, u := s.store.signIn(displayName)
	return &http.Cookie{Name: CookieName, Value: token, Path: "/", HttpOnly: true}, u
}

// handleLogin stands in for the OAuth round trip: it signs the caller in
// immediately and sends them back to returnTo.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Dev User"
	}
	cookie, u := s.SignIn(name)
	http.SetCookie(w, cookie)
	s.log.Info().Str("user", u.ID).Str("name", u.DisplayName).Msg("signed in")

	returnTo := r.URL.Query().Get("returnTo")
	if returnTo != "" {
		if strings.HasPrefix(returnTo, "/") && s.opts.WebURL != "" {
			returnTo = strings.TrimRight(s.opts.WebURL, "/") + returnTo
		}
		http.Redirect(w, r, returnTo, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Signed in as %s.\n\nTo sign in the CLI, run:\n\n  revify login --cookie %s=%s\n",
		u.DisplayName, cookie.Name, cookie.Value)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Not authenticated"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": u})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(CookieName); err == nil {
		s.store.signOut(ck.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1})
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}
