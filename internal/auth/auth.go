// Package auth holds the signed-in user for the lifetime of the program.
//
// A Store is built once at startup and handed to whatever needs to know who
// is signed in. It performs a single identity check; failures of that check
// leave the store signed out rather than surfacing an error.
package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sprite-ai/revify/internal/model"
)

// Identity is the part of the backend the store needs. *api.Client
// satisfies it.
type Identity interface {
	Me(ctx context.Context) (*model.User, error)
	Logout(ctx context.Context) error
}

// Store is the shared authentication state. It is safe for concurrent use.
type Store struct {
	identity Identity
	webURL   string
	log      zerolog.Logger

	once    sync.Once
	mu      sync.RWMutex
	user    *model.User
	loading bool
}

// NewStore creates a store in the loading state. Call Init to resolve it.
func NewStore(identity Identity, webURL string, log zerolog.Logger) *Store {
	return &Store{
		identity: identity,
		webURL:   strings.TrimRight(webURL, "/"),
		log:      log,
		loading:  true,
	}
}

// Init asks the backend who is signed in. Only the first call does any work.
func (s *Store) Init(ctx context.Context) {
	s.once.Do(func() {
		u, err := s.identity.Me(ctx)
		if err != nil {
			s.log.Debug().Err(err).Msg("identity check failed, treating as signed out")
			u = nil
		}
		s.mu.Lock()
		s.user = u
		s.loading = false
		s.mu.Unlock()
	})
}

// CurrentUser returns the signed-in user, or nil.
func (s *Store) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SignedIn reports whether a user is present.
func (s *Store) SignedIn() bool { return s.CurrentUser() != nil }

// Loading reports whether the identity check is still pending.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LoginURL returns the OAuth entry point. returnTo, when set, is the
// in-app path to come back to after signing in.
func (s *Store) LoginURL(returnTo string) string {
	u := s.webURL + "/auth/google"
	if returnTo != "" {
		u += "?" + url.Values{"returnTo": {returnTo}}.Encode()
	}
	return u
}

// Logout ends the backend session and forgets the user.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.identity.Logout(ctx); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	return nil
}

// SetUser replaces the signed-in user after an out-of-band sign-in.
func (s *Store) SetUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	s.loading = false
}
