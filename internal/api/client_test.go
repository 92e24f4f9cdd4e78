package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/revify/internal/model"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": status < 300, "data": data})
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)

	_, err = NewClient(Options{BaseURL: "localhost"})
	assert.Error(t, err)
}

func TestMe(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/me", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("_t"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"user":    map[string]any{"_id": "u1", "displayName": "Ada", "provider": "google"},
		})
	}))

	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "Ada", u.DisplayName)
}

func TestMeUnauthorized(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"401", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"success":false,"message":"Not authenticated"}`)
		}},
		{"success false", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"success":false}`)
		}},
		{"no user", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"success":true,"user":null}`)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Me(context.Background())
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"success":false,"error":{"message":"Session not found"}}`, "Session not found"},
		{`{"success":false,"message":"Title is required"}`, "Title is required"},
		{`{"error":"forbidden"}`, "forbidden"},
		{`not json`, ""},
	}
	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("errorMessage(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestErrorSentinels(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusRequestEntityTooLarge, ErrFileTooLarge},
	}
	for _, tt := range tests {
		err := error(&Error{StatusCode: tt.status})
		if !errors.Is(err, tt.target) {
			t.Errorf("status %d should match %v", tt.status, tt.target)
		}
	}
	assert.False(t, errors.Is(&Error{StatusCode: 500}, ErrNotFound))
}

func TestMessageFallback(t *testing.T) {
	assert.Equal(t, "boom", Message(&Error{StatusCode: 400, Message: "boom"}, "fallback"))
	assert.Equal(t, "fallback", Message(&Error{StatusCode: 500}, "fallback"))
	assert.Equal(t, "fallback", Message(errors.New("dial tcp"), "fallback"))
}

func TestCreateSessionSendsDefaultPermission(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions", r.URL.Path)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "everyone", in["commentPermission"])
		assert.Equal(t, "private", in["visibility"])
		writeEnvelope(w, http.StatusCreated, map[string]any{
			"_id": "s1", "title": in["title"], "visibility": in["visibility"], "status": "created",
			"owner": map[string]any{"_id": "u1", "displayName": "Ada"},
		})
	}))

	s, err := c.CreateSession(context.Background(), CreateSessionInput{
		Title:      "Review me",
		Visibility: model.VisibilityPrivate,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, model.StatusCreated, s.Status)
}

func TestUpdateSessionSettingsIsPartial(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/sessions/s1/settings", r.URL.Path)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, map[string]any{"visibility": "public"}, in)
		writeEnvelope(w, http.StatusOK, map[string]any{"_id": "s1", "visibility": "public"})
	}))

	v := model.VisibilityPublic
	s, err := c.UpdateSessionSettings(context.Background(), "s1", SessionSettings{Visibility: &v})
	require.NoError(t, err)
	assert.Equal(t, model.VisibilityPublic, s.Visibility)
}

func TestInviteTokens(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/sessions/s1/invite-token":
			writeEnvelope(w, http.StatusOK, map[string]any{"inviteToken": nil})
		case r.Method == http.MethodPost && r.URL.Path == "/sessions/s1/invite-token":
			writeEnvelope(w, http.StatusOK, map[string]any{"inviteToken": "tok"})
		case r.Method == http.MethodPost && r.URL.Path == "/sessions/join/tok":
			writeEnvelope(w, http.StatusOK, map[string]any{"sessionId": "s1"})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	tok, err := c.GetInviteToken(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, tok)

	tok, err = c.RefreshInviteToken(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	id, err := c.JoinSession(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "s1", id)

	_, err = c.JoinSession(ctx, "bogus")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileContentTooLarge(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("path") == "big.bin" {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			_, _ = io.WriteString(w, `{"success":false,"error":{"message":"File too large"}}`)
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"content": "package main\n"})
	}))
	ctx := context.Background()

	content, err := c.FileContent(ctx, "s1", "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", content)

	_, err = c.FileContent(ctx, "s1", "big.bin")
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, "File too large", Message(err, "Failed to load file content."))
}

func TestCommentsRoundTrip(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeEnvelope(w, http.StatusOK, []map[string]any{
				{"_id": "c1", "filePath": "a.go", "startLine": 2, "endLine": 2, "parentComment": nil},
			})
		case http.MethodPost:
			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "c1", in["parentComment"])
			writeEnvelope(w, http.StatusCreated, map[string]any{"_id": "c2", "parentComment": "c1"})
		case http.MethodPatch:
			assert.Equal(t, "/sessions/s1/comments/c1", r.URL.Path)
			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, map[string]any{"resolved": true}, in)
			writeEnvelope(w, http.StatusOK, map[string]any{"_id": "c1", "resolved": true})
		}
	}))
	ctx := context.Background()

	list, err := c.ListComments(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRoot())

	reply, err := c.CreateComment(ctx, "s1", NewComment{FilePath: "a.go", StartLine: 2, EndLine: 2, Content: "+1", ParentComment: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "c1", reply.ParentComment)

	updated, err := c.SetResolved(ctx, "s1", "c1", true)
	require.NoError(t, err)
	assert.True(t, updated.Resolved)
}

func TestUploadFileMultipart(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/s1/uploads", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "code.zip", hdr.Filename)
		assert.Equal(t, "PK", string(body))
		writeEnvelope(w, http.StatusAccepted, map[string]any{"uploadId": "u1"})
	}))

	id, err := c.UploadFile(context.Background(), "s1", "/tmp/code.zip", strings.NewReader("PK"))
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestUploadEventsURL(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "http://api.local/api", EventsURL: "http://events.local/"})
	require.NoError(t, err)
	assert.Equal(t, "http://events.local/sessions/s1/uploads/u1/events", c.UploadEventsURL("s1", "u1"))

	c, err = NewClient(Options{BaseURL: "http://api.local/api"})
	require.NoError(t, err)
	assert.Equal(t, "http://api.local/api/sessions/s1/uploads/u1/events", c.UploadEventsURL("s1", "u1"))
}

func TestCookiesAreSent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("revify.sid")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "abc", ck.Value)
		writeEnvelope(w, http.StatusOK, []any{})
	}))

	_, err := c.ListSessions(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)

	c.SetCookies([]*http.Cookie{{Name: "revify.sid", Value: "abc"}})
	_, err = c.ListSessions(context.Background())
	assert.NoError(t, err)
	require.Len(t, c.Cookies(), 1)
}
