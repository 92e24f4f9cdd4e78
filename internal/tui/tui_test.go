package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/auth"
	"github.com/sprite-ai/revify/internal/events"
	"github.com/sprite-ai/revify/internal/model"
	"github.com/sprite-ai/revify/internal/router"
	"github.com/sprite-ai/revify/internal/upload"
)

var (
	alice = &model.User{ID: "u-alice", DisplayName: "Alice"}
	bob   = model.UserRef{ID: "u-bob", DisplayName: "Bob"}
)

type identity struct{ user *model.User }

func (i identity) Me(ctx context.Context) (*model.User, error) {
	if i.user == nil {
		return nil, api.ErrUnauthorized
	}
	return i.user, nil
}

func (i identity) Logout(ctx context.Context) error { return nil }

type fakeBackend struct {
	mu sync.Mutex

	sessions []model.Session
	files    []model.FileNode
	contents map[string]string
	comments []model.Comment

	created   []api.CreateSessionInput
	updated   []api.SessionSettings
	deleted   []string
	posted    []api.NewComment
	resolved  map[string]bool
	getCalls  int
	joinID    string
	joinErr   error
	uploaded  bool
	uploadErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{contents: make(map[string]string), resolved: make(map[string]bool)}
}

func (b *fakeBackend) ListSessions(ctx context.Context) ([]model.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Session(nil), b.sessions...), nil
}

func (b *fakeBackend) CreateSession(ctx context.Context, in api.CreateSessionInput) (*model.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, in)
	return &model.Session{
		ID:         "new",
		Title:      in.Title,
		Visibility: in.Visibility,
		Owner:      model.UserRef{ID: alice.ID, DisplayName: alice.DisplayName},
		Status:     model.StatusCreated,
	}, nil
}

func (b *fakeBackend) GetSession(ctx context.Context, id string) (*model.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getCalls++
	for _, s := range b.sessions {
		if s.ID == id {
			if b.uploaded {
				s.Status = model.StatusReady
			}
			return &s, nil
		}
	}
	return nil, &api.Error{StatusCode: 404, Message: "Session not found"}
}

func (b *fakeBackend) DeleteSession(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBackend) UpdateSessionSettings(ctx context.Context, id string, in api.SessionSettings) (*model.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updated = append(b.updated, in)
	for i := range b.sessions {
		if b.sessions[i].ID == id {
			s := &b.sessions[i]
			if in.Title != nil {
				s.Title = *in.Title
			}
			if in.Description != nil {
				s.Description = *in.Description
			}
			if in.Visibility != nil {
				s.Visibility = *in.Visibility
			}
			out := *s
			return &out, nil
		}
	}
	return nil, &api.Error{StatusCode: 404}
}

func (b *fakeBackend) RefreshInviteToken(ctx context.Context, id string) (string, error) {
	return "tok-" + id, nil
}

func (b *fakeBackend) JoinSession(ctx context.Context, token string) (string, error) {
	return b.joinID, b.joinErr
}

func (b *fakeBackend) FileTree(ctx context.Context, sessionID string) ([]model.FileNode, error) {
	return b.files, nil
}

func (b *fakeBackend) FileContent(ctx context.Context, sessionID, path string) (string, error) {
	c, ok := b.contents[path]
	if !ok {
		return "", &api.Error{StatusCode: 413, Message: "File is too large to display"}
	}
	return c, nil
}

func (b *fakeBackend) ListComments(ctx context.Context, sessionID string) ([]model.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Comment(nil), b.comments...), nil
}

func (b *fakeBackend) CreateComment(ctx context.Context, sessionID string, in api.NewComment) (*model.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posted = append(b.posted, in)
	c := model.Comment{
		ID:            "c" + string(rune('0'+len(b.comments))),
		FilePath:      in.FilePath,
		StartLine:     in.StartLine,
		EndLine:       in.EndLine,
		Content:       in.Content,
		ParentComment: in.ParentComment,
		Author:        model.UserRef{ID: alice.ID, DisplayName: alice.DisplayName},
		CreatedAt:     time.Now(),
	}
	b.comments = append(b.comments, c)
	return &c, nil
}

func (b *fakeBackend) SetResolved(ctx context.Context, sessionID, commentID string, resolved bool) (*model.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolved[commentID] = resolved
	for i := range b.comments {
		if b.comments[i].ID == commentID {
			b.comments[i].Resolved = resolved
			c := b.comments[i]
			return &c, nil
		}
	}
	return nil, &api.Error{StatusCode: 404}
}

func (b *fakeBackend) UploadFile(ctx context.Context, sessionID, name string, r io.Reader) (string, error) {
	_, _ = io.ReadAll(r)
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	return "u1", nil
}

func (b *fakeBackend) UploadEventsURL(sessionID, uploadID string) string {
	return "http://backend/sessions/" + sessionID + "/uploads/" + uploadID + "/events"
}

type fakeStream struct {
	mu     sync.Mutex
	events []events.Event
	closed int
	after  func()
}

func (s *fakeStream) Recv() (events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return nil, events.ErrConnectionLost
	}
	ev := s.events[0]
	s.events = s.events[1:]
	if _, done := ev.(events.Done); done && s.after != nil {
		s.after()
	}
	return ev, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type harness struct {
	t       *testing.T
	backend *fakeBackend
	store   *auth.Store
	stream  *fakeStream
	urls    []string
	model   tea.Model
}

func newHarness(t *testing.T, user *model.User, b *fakeBackend) *harness {
	t.Helper()
	h := &harness{t: t, backend: b, stream: &fakeStream{}}
	h.store = auth.NewStore(identity{user: user}, "http://web", zerolog.Nop())
	return h
}

func (h *harness) start(path string) *harness {
	h.t.Helper()
	conn := upload.ConnectorFunc(func(ctx context.Context, url string) (upload.EventStream, error) {
		h.urls = append(h.urls, url)
		return h.stream, nil
	})
	app := New(context.Background(), Options{
		Backend:   h.backend,
		Auth:      h.store,
		Connector: conn,
		WebURL:    "http://web",
		Start:     path,
		Logger:    zerolog.Nop(),
	})
	m, _ := app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	h.model = m
	h.settle(app.Init())
	return h
}

// run executes cmd, giving up on commands that only produce timer ticks.
func run(cmd tea.Cmd) tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		return nil
	}
}

// settle feeds cmd's messages back into the model until nothing is left.
// Animation ticks are dropped so the loop terminates.
func (h *harness) settle(cmd tea.Cmd) {
	h.t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 500 {
			h.t.Fatal("update loop did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := run(c).(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			var next tea.Cmd
			h.model, next = h.model.Update(msg)
			queue = append(queue, next)
		}
	}
}

func (h *harness) press(keys ...string) {
	h.t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var cmd tea.Cmd
		h.model, cmd = h.model.Update(msg)
		h.settle(cmd)
	}
}

func (h *harness) app() App { return h.model.(App) }

func ownedSession(id string, vis model.Visibility) model.Session {
	return model.Session{
		ID:         id,
		Title:      "Session " + id,
		Visibility: vis,
		Status:     model.StatusCreated,
		Owner:      model.UserRef{ID: alice.ID, DisplayName: alice.DisplayName},
		CreatedAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProtectedRouteRedirectsToLogin(t *testing.T) {
	h := newHarness(t, nil, newFakeBackend()).start("/sessions")

	app := h.app()
	assert.Equal(t, router.Login, app.route.Name)
	assert.Equal(t, "/sessions", app.route.Query.Get("returnTo"))
	assert.IsType(t, &loginScreen{}, app.screen)
	assert.Contains(t, app.View(), "http://web/auth/google?returnTo=%2Fsessions")
}

func TestProtectedRouteWaitsForIdentity(t *testing.T) {
	h := newHarness(t, alice, newFakeBackend())
	app := New(context.Background(), Options{Backend: h.backend, Auth: h.store, Start: "/sessions", Logger: zerolog.Nop()})

	assert.True(t, app.waiting)
	assert.Nil(t, app.screen)
	assert.Equal(t, router.Sessions, app.route.Name)

	h.model = app
	h.settle(func() tea.Msg {
		h.store.Init(context.Background())
		return authReadyMsg{}
	})
	app = h.app()
	assert.False(t, app.waiting)
	assert.IsType(t, &sessionsScreen{}, app.screen)
}

func TestLoginLeavesWhenSignedIn(t *testing.T) {
	h := newHarness(t, alice, newFakeBackend()).start("/login?returnTo=%2Fsessions")
	assert.Equal(t, router.Sessions, h.app().route.Name)
}

func TestNotFoundRoute(t *testing.T) {
	h := newHarness(t, nil, newFakeBackend()).start("/nope")
	assert.Equal(t, router.NotFound, h.app().route.Name)
	assert.Contains(t, h.app().View(), "Page not found.")

	h.press("enter")
	assert.Equal(t, router.Home, h.app().route.Name)
}

func TestSessionsCreatePrependsWithDefaultPermission(t *testing.T) {
	b := newFakeBackend()
	b.sessions = []model.Session{ownedSession("s1", model.VisibilityPublic)}
	h := newHarness(t, alice, b).start("/sessions")

	s := h.app().screen.(*sessionsScreen)
	require.Len(t, s.sessions, 1)

	h.press("n")
	require.NotNil(t, s.form)
	assert.True(t, h.app().screen.Capturing())

	// q goes to the form, not the quit binding.
	h.press("Review q", "tab", "desc", "tab", " ", "enter")

	require.Len(t, b.created, 1)
	assert.Equal(t, "Review q", b.created[0].Title)
	assert.Equal(t, "desc", b.created[0].Description)
	assert.Equal(t, model.VisibilityPublic, b.created[0].Visibility)
	assert.Equal(t, model.CommentEveryone, b.created[0].CommentPermission)

	require.Len(t, s.sessions, 2)
	assert.Equal(t, "new", s.sessions[0].ID)
	assert.Nil(t, s.form)
}

func TestSessionsCreateRequiresTitle(t *testing.T) {
	b := newFakeBackend()
	h := newHarness(t, alice, b).start("/sessions")
	s := h.app().screen.(*sessionsScreen)

	h.press("n", "enter")
	assert.Empty(t, b.created)
	require.NotNil(t, s.form)
	assert.Equal(t, "Title is required", s.form.err)
}

func TestSessionsSettingsFormSendsChangedFields(t *testing.T) {
	b := newFakeBackend()
	b.sessions = []model.Session{ownedSession("s1", model.VisibilityPrivate)}
	h := newHarness(t, alice, b).start("/sessions")
	s := h.app().screen.(*sessionsScreen)

	h.press("e")
	require.NotNil(t, s.form)
	assert.Equal(t, "s1", s.form.sessionID)
	assert.Equal(t, "Session s1", s.form.title.Value())
	assert.Contains(t, h.app().View(), "Session Settings")

	h.press(" v2", "tab", "tab", " ", "enter")

	require.Len(t, b.updated, 1)
	in := b.updated[0]
	require.NotNil(t, in.Title)
	assert.Equal(t, "Session s1 v2", *in.Title)
	assert.Nil(t, in.Description)
	require.NotNil(t, in.Visibility)
	assert.Equal(t, model.VisibilityPrivate.Next(), *in.Visibility)

	assert.Nil(t, s.form)
	assert.Equal(t, "Session s1 v2", s.sessions[0].Title)
	assert.Contains(t, s.notice, "Saved Session s1 v2")
}

func TestSessionsSettingsFormUnchangedOrNotOwner(t *testing.T) {
	b := newFakeBackend()
	theirs := ownedSession("s2", model.VisibilityLink)
	theirs.Owner = bob
	b.sessions = []model.Session{ownedSession("s1", model.VisibilityLink), theirs}
	h := newHarness(t, alice, b).start("/sessions")
	s := h.app().screen.(*sessionsScreen)

	h.press("e", "enter")
	assert.Empty(t, b.updated)
	assert.Nil(t, s.form)

	h.press("down", "e")
	assert.Nil(t, s.form)
}

func TestSessionsVisibilityCycleOwnerOnly(t *testing.T) {
	b := newFakeBackend()
	theirs := ownedSession("s2", model.VisibilityLink)
	theirs.Owner = bob
	b.sessions = []model.Session{ownedSession("s1", model.VisibilityPrivate), theirs}
	h := newHarness(t, alice, b).start("/sessions")
	s := h.app().screen.(*sessionsScreen)

	h.press("v")
	require.Len(t, b.updated, 1)
	assert.Equal(t, model.VisibilityLink, *b.updated[0].Visibility)
	assert.Equal(t, model.VisibilityLink, s.sessions[0].Visibility)

	h.press("down", "v")
	assert.Len(t, b.updated, 1)
}

func TestSessionsDeleteNeedsConfirmation(t *testing.T) {
	b := newFakeBackend()
	b.sessions = []model.Session{ownedSession("s1", model.VisibilityLink), ownedSession("s2", model.VisibilityLink)}
	h := newHarness(t, alice, b).start("/sessions")
	s := h.app().screen.(*sessionsScreen)

	h.press("d", "n")
	assert.Empty(t, b.deleted)
	assert.Len(t, s.sessions, 2)

	h.press("d", "y")
	assert.Equal(t, []string{"s1"}, b.deleted)
	require.Len(t, s.sessions, 1)
	assert.Equal(t, "s2", s.sessions[0].ID)
}

func TestSessionsShareLink(t *testing.T) {
	b := newFakeBackend()
	b.sessions = []model.Session{ownedSession("s1", model.VisibilityPrivate)}
	h := newHarness(t, alice, b).start("/sessions")
	s := h.app().screen.(*sessionsScreen)

	h.press("y")
	assert.True(t, s.failed)
	assert.Contains(t, s.notice, "Invite token not found")

	h.press("i")
	assert.False(t, s.failed)
	assert.Equal(t, "Link: http://web/join/tok-s1", s.notice)
}

func TestJoinRedirectsToSession(t *testing.T) {
	b := newFakeBackend()
	b.joinID = "s9"
	b.sessions = []model.Session{ownedSession("s9", model.VisibilityPrivate)}
	h := newHarness(t, alice, b).start("/join/abc")

	app := h.app()
	assert.Equal(t, router.SessionDetail, app.route.Name)
	assert.Equal(t, "s9", app.route.Param("id"))
}

func TestJoinShowsServerError(t *testing.T) {
	b := newFakeBackend()
	b.joinErr = &api.Error{StatusCode: 404, Message: "Invite expired"}
	h := newHarness(t, alice, b).start("/join/abc")

	s := h.app().screen.(*joinScreen)
	assert.Equal(t, "Invite expired", s.err)

	b.joinErr = errors.New("boom")
	h = newHarness(t, alice, b).start("/join/abc")
	assert.Equal(t, "Invalid invite link", h.app().screen.(*joinScreen).err)
}

func TestJoinSignedOutPreservesPath(t *testing.T) {
	h := newHarness(t, nil, newFakeBackend()).start("/join/abc")
	assert.Contains(t, h.app().View(), "You need to sign in to join this session.")

	h.press("L")
	app := h.app()
	assert.Equal(t, router.Login, app.route.Name)
	assert.Equal(t, "/join/abc", app.route.Query.Get("returnTo"))
}

func readySession() (*fakeBackend, model.Session) {
	b := newFakeBackend()
	sess := ownedSession("s1", model.VisibilityLink)
	sess.Status = model.StatusReady
	b.sessions = []model.Session{sess}
	b.files = []model.FileNode{
		{Path: "src", Name: "src", IsDirectory: true},
		{Path: "src/main.go", Name: "main.go", Language: "go"},
		{Path: "README.md", Name: "README.md"},
	}
	b.contents["src/main.go"] = "package main\n\nfunc main() {}\n"
	b.comments = []model.Comment{
		{ID: "r1", FilePath: "src/main.go", StartLine: 3, EndLine: 3, Content: "root", Author: bob},
		{ID: "x1", FilePath: "src/main.go", StartLine: 3, EndLine: 3, Content: "reply", ParentComment: "r1", Author: bob},
	}
	return b, sess
}

func TestDetailBrowseAndComment(t *testing.T) {
	b, _ := readySession()
	h := newHarness(t, alice, b).start("/sessions/s1")
	s := h.app().screen.(*detailScreen)

	require.True(t, s.ready())
	require.Len(t, s.rows, 2)
	assert.Equal(t, "src", s.rows[0].Node.Path)

	// Expand src, then open main.go.
	h.press("enter", "down", "enter")
	assert.Equal(t, "src/main.go", s.file)
	require.Len(t, s.lines, 3)
	assert.Equal(t, "func main() {}", s.lines[2].Plain())
	require.Len(t, s.threads, 1)
	assert.Len(t, s.threads[0].Replies, 1)
	assert.Equal(t, 1, s.counts[3])
	assert.Equal(t, paneCode, s.focus)

	h.press("down", "down", "c", "looks fine", "enter")
	require.Len(t, b.posted, 1)
	assert.Equal(t, api.NewComment{FilePath: "src/main.go", StartLine: 3, EndLine: 3, Content: "looks fine"}, b.posted[0])
	assert.Len(t, s.threads, 2)
	assert.False(t, s.Capturing())

	// Reply to and resolve the first thread from the comments pane.
	h.press("tab", "r", "agreed", "enter")
	require.Len(t, b.posted, 2)
	assert.Equal(t, "r1", b.posted[1].ParentComment)

	h.press("x")
	assert.True(t, b.resolved["r1"])
	assert.True(t, s.threads[0].Root.Resolved)
}

func TestDetailFileTooLarge(t *testing.T) {
	b, _ := readySession()
	h := newHarness(t, alice, b).start("/sessions/s1")
	s := h.app().screen.(*detailScreen)

	h.press("down", "enter")
	assert.Equal(t, "README.md", s.file)
	assert.Equal(t, "File is too large to display.", s.fileErr)
}

func TestDetailDiscardsStaleFileResults(t *testing.T) {
	b, _ := readySession()
	b.contents["README.md"] = "# readme\n"
	h := newHarness(t, alice, b).start("/sessions/s1")
	s := h.app().screen.(*detailScreen)

	slow := s.openFile("src/main.go")
	fast := s.openFile("README.md")
	s.Update(run(fast))
	s.Update(run(slow))

	assert.Equal(t, "README.md", s.file)
	require.Len(t, s.lines, 1)
	assert.Equal(t, "# readme", s.lines[0].Plain())
}

func TestDetailUploadRefreshesOnce(t *testing.T) {
	b := newFakeBackend()
	b.sessions = []model.Session{ownedSession("s1", model.VisibilityLink)}
	h := newHarness(t, alice, b)
	h.stream.events = []events.Event{
		events.Progress{Percent: 50, Message: "Halfway there"},
		events.Done{Message: "Upload complete"},
	}
	h.stream.after = func() {
		b.mu.Lock()
		b.uploaded = true
		b.mu.Unlock()
	}
	h.start("/sessions/s1")
	s := h.app().screen.(*detailScreen)
	require.False(t, s.ready())
	assert.Equal(t, 1, b.getCalls)

	archive := filepath.Join(t.TempDir(), "code.zip")
	require.NoError(t, os.WriteFile(archive, []byte("PK"), 0o644))

	h.press("u")
	require.Equal(t, inputUpload, s.kind)
	h.press(archive, "enter")

	require.Len(t, h.urls, 1)
	assert.True(t, strings.HasSuffix(h.urls[0], "/uploads/u1/events"))

	st := s.tracker.State()
	assert.Equal(t, upload.Done, st.Phase)
	assert.Equal(t, 100, st.Percent)
	assert.Equal(t, 2, b.getCalls)
	assert.True(t, s.ready())
	assert.Equal(t, 1, h.stream.closed)
}

func TestDetailUploadRejectsNonZip(t *testing.T) {
	b := newFakeBackend()
	b.sessions = []model.Session{ownedSession("s1", model.VisibilityLink)}
	h := newHarness(t, alice, b).start("/sessions/s1")
	s := h.app().screen.(*detailScreen)

	h.press("u", "notes.txt", "enter")
	assert.Equal(t, "Only ZIP files are allowed.", s.notice)
	assert.Equal(t, upload.Idle, s.tracker.State().Phase)
}

func TestDetailWaitingForOwner(t *testing.T) {
	b := newFakeBackend()
	theirs := ownedSession("s1", model.VisibilityPublic)
	theirs.Owner = bob
	b.sessions = []model.Session{theirs}
	h := newHarness(t, alice, b).start("/sessions/s1")

	assert.Contains(t, h.app().View(), "Waiting for owner to upload code...")
	h.press("u")
	assert.Equal(t, inputNone, h.app().screen.(*detailScreen).kind)
}

func TestDetailLoadFailure(t *testing.T) {
	h := newHarness(t, alice, newFakeBackend()).start("/sessions/missing")
	s := h.app().screen.(*detailScreen)
	assert.Equal(t, "Failed to load session details.", s.err)
	assert.Contains(t, h.app().View(), "Failed to load session details.")
}

func TestQuitClosesScreen(t *testing.T) {
	b, _ := readySession()
	h := newHarness(t, alice, b).start("/sessions/s1")

	_, cmd := h.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHelpToggle(t *testing.T) {
	h := newHarness(t, nil, newFakeBackend()).start("/")
	h.press("?")
	assert.True(t, h.app().showHelp)
	assert.Contains(t, h.app().View(), "Keyboard Shortcuts")
	h.press("?")
	assert.False(t, h.app().showHelp)
}
