// Package devserver implements an in-memory code-review backend for local
// development and end-to-end tests.
//
// It speaks the same REST and server-sent event surface as the production
// backend: {"success": ..., "data": ...} envelopes, cookie sessions and
// upload progress streams. Sign-in is simulated; nothing is persisted.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// CookieName is the session cookie set by the simulated sign-in.
const CookieName = "revify.sid"

// Options configures a Server.
type Options struct {
	Addr string
	// WebURL is where sign-in redirects land when returnTo is relative.
	WebURL string
	// MaxFileSize is the largest file the file endpoint serves.
	MaxFileSize int64
	// MaxUpload is the largest archive accepted.
	MaxUpload int64
	// StepDelay slows upload processing down so progress is visible.
	StepDelay time.Duration
	Logger    zerolog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Server is the development backend.
type Server struct {
	opts   Options
	log    zerolog.Logger
	store  *store
	router chi.Router
	server *http.Server

	// processing outlives requests; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new development server.
func New(opts Options) *Server {
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = 1 << 20
	}
	if opts.MaxUpload == 0 {
		opts.MaxUpload = 50 << 20
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:   opts,
		log:    opts.Logger,
		store:  newStore(opts.Now),
		ctx:    ctx,
		cancel: cancel,
	}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:        opts.Addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Get("/auth/google", s.handleLogin)
	r.Get("/auth/me", s.handleMe)
	r.Post("/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/join/{token}", s.handleJoin)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Patch("/settings", s.handleUpdateSettings)
			r.Get("/invite-token", s.handleGetInviteToken)
			r.Post("/invite-token", s.handleRefreshInviteToken)
			r.Post("/uploads", s.handleUpload)
			r.Get("/uploads/{uploadId}/events", s.handleUploadEvents)
			r.Get("/tree", s.handleTree)
			r.Get("/file", s.handleFile)
			r.Get("/comments", s.handleListComments)
			r.Post("/comments", s.handleCreateComment)
			r.Patch("/comments/{commentId}", s.handleUpdateComment)
		})
	})
	return r
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.opts.Addr).Msg("revify dev backend listening")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and cancels background processing.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// writeData writes a success envelope around data.
func (s *Server) writeData(w http.ResponseWriter, status int, data any) {
	s.writeJSON(w, status, map[string]any{"success": true, "data": data})
}

// writeError writes a failure envelope carrying msg.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{
		"success": false,
		"error":   map[string]string{"message": msg},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode error")
	}
}

// readJSON decodes a JSON request body into v.
func readJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// storeError maps store errors onto responses.
func (s *Server) storeError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, errNotFound):
		s.writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, errForbidden):
		s.writeError(w, http.StatusForbidden, "You do not have permission to do that")
	case errors.Is(err, errBadParent):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
