package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/config"
	"github.com/sprite-ai/revify/internal/devserver"
	"github.com/sprite-ai/revify/internal/model"
	"github.com/sprite-ai/revify/internal/router"
)

type testEnv struct {
	t       *testing.T
	srv     *devserver.Server
	ts      *httptest.Server
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := devserver.New(devserver.Options{MaxFileSize: 1024, Logger: zerolog.Nop()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})

	dataDir := t.TempDir()
	t.Setenv(config.EnvDataDir, dataDir)
	t.Setenv(config.EnvEnvFile, filepath.Join(dataDir, "missing.env"))
	t.Setenv(config.EnvAPIURL, ts.URL)
	for _, k := range []string{config.EnvEventsURL, config.EnvWebURL, config.EnvLogLevel, config.EnvTimeout} {
		t.Setenv(k, "")
	}
	return &testEnv{t: t, srv: srv, ts: ts, dataDir: dataDir}
}

// signIn stores credentials for a fresh user, as `revify login` would.
func (e *testEnv) signIn(name string) (*api.Client, model.User) {
	e.t.Helper()
	cookie, u := e.srv.SignIn(name)
	creds := config.NewCredentials(e.ts.URL, []*http.Cookie{cookie})
	require.NoError(e.t, config.SaveCredentials(filepath.Join(e.dataDir, "credentials.yaml"), creds))

	c, err := api.NewClient(api.Options{BaseURL: e.ts.URL})
	require.NoError(e.t, err)
	c.SetCookies([]*http.Cookie{cookie})
	return c, u
}

// run executes the root command with args and returns what it printed.
func (e *testEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run("", args...)
	require.NoError(e.t, err, out)
	return out
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "code.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, want := range []string{
		"login", "logout", "whoami", "sessions", "invite", "join", "tree", "cat",
		"comments", "comment", "upload", "browse", "serve", "version",
	} {
		if !names[want] {
			t.Errorf("root command missing subcommand %q", want)
		}
	}
}

func TestVersionOutput(t *testing.T) {
	// version vars are set via ldflags; in tests they have their defaults
	if version != "dev" {
		t.Errorf("expected default version %q, got %q", "dev", version)
	}

	e := newTestEnv(t)
	out := e.mustRun("version")
	assert.Equal(t, "revify dev (commit none, built unknown)\n", out)
}

func TestProtectedCommandsRequireSignIn(t *testing.T) {
	e := newTestEnv(t)

	for _, args := range [][]string{
		{"sessions", "list"},
		{"sessions", "show", "abc"},
		{"comments", "abc"},
		{"whoami"},
	} {
		_, err := e.run("", args...)
		assert.ErrorIs(t, err, errNotSignedIn, "%v", args)
	}
}

func TestLoginWithCookie(t *testing.T) {
	e := newTestEnv(t)
	cookie, _ := e.srv.SignIn("Ada Lovelace")

	out := e.mustRun("login", "--cookie", cookie.Name+"="+cookie.Value)
	assert.Contains(t, out, "Signed in as Ada Lovelace <ada.lovelace@example.com>")

	creds, err := config.LoadCredentials(filepath.Join(e.dataDir, "credentials.yaml"))
	require.NoError(t, err)
	assert.Equal(t, e.ts.URL, creds.APIURL)
	require.Len(t, creds.Cookies, 1)
	assert.Equal(t, cookie.Value, creds.Cookies[0].Value)

	out = e.mustRun("whoami")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "ada.lovelace@example.com")

	out = e.mustRun("logout")
	assert.Contains(t, out, "Signed out.")
	_, err = os.Stat(filepath.Join(e.dataDir, "credentials.yaml"))
	assert.True(t, os.IsNotExist(err))

	_, err = e.run("", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestLoginRejectsBadCookie(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.run("", "login", "--cookie", devserver.CookieName+"=bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not accept")

	_, err = e.run("", "login", "--cookie", "novalue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name=value")
}

func TestLoginPrintsURL(t *testing.T) {
	e := newTestEnv(t)

	out := e.mustRun("login", "--no-browser")
	assert.Contains(t, out, e.ts.URL+"/auth/google")
	assert.Contains(t, out, "revify login --cookie")
}

func TestSessionsLifecycle(t *testing.T) {
	e := newTestEnv(t)
	client, _ := e.signIn("Ada")
	ctx := context.Background()

	_, err := e.run("", "sessions", "create")
	assert.EqualError(t, err, "title is required")

	out := e.mustRun("sessions", "create", "--title", "Review me", "--visibility", "private")
	assert.Contains(t, out, "(Private)")

	list, err := client.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	s := list[0]
	assert.Equal(t, model.CommentEveryone, s.CommentPermission)
	assert.Contains(t, out, "Created session "+s.ID)

	out = e.mustRun("sessions", "list")
	assert.Contains(t, out, "Review me")
	assert.Contains(t, out, "you")

	out = e.mustRun("sessions", "show", s.ID)
	assert.Contains(t, out, "Review me")
	assert.Contains(t, out, "Private")
	assert.Contains(t, out, "comments by: everyone")
	assert.Contains(t, out, "revify upload "+s.ID)
	assert.Contains(t, out, "0 open, 0 resolved")

	_, err = e.run("", "sessions", "settings", s.ID)
	assert.Error(t, err)

	out = e.mustRun("sessions", "settings", s.ID, "--visibility", "public", "--comment-permission", "owner")
	assert.Contains(t, out, "Public")
	assert.Contains(t, out, "comments by owner")

	_, err = e.run("", "sessions", "settings", s.ID, "--visibility", "secret")
	assert.Error(t, err)

	out, err = e.run("n\n", "sessions", "delete", s.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "This action cannot be undone.")
	assert.Contains(t, out, "Cancelled.")

	out, err = e.run("y\n", "sessions", "delete", s.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted session "+s.ID)

	_, err = e.run("", "sessions", "show", s.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestInviteAndJoin(t *testing.T) {
	e := newTestEnv(t)
	owner, _ := e.signIn("Owner")
	ctx := context.Background()

	s, err := owner.CreateSession(ctx, api.CreateSessionInput{Title: "Secret", Visibility: model.VisibilityPrivate})
	require.NoError(t, err)

	_, err = e.run("", "invite", "show", s.ID)
	assert.ErrorIs(t, err, router.ErrNoInviteToken)

	out := e.mustRun("invite", "refresh", s.ID)
	token, err := owner.GetInviteToken(ctx, s.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	link := e.ts.URL + router.JoinPath(token)
	assert.Contains(t, out, "Link:  "+link)

	e.signIn("Guest")

	_, err = e.run("", "join", "bogus")
	require.Error(t, err)
	assert.Equal(t, "Invite link is invalid or has expired", err.Error())

	out = e.mustRun("join", link)
	assert.Contains(t, out, "Joined session "+s.ID)

	out = e.mustRun("sessions", "list")
	assert.Contains(t, out, "Secret")
	assert.Contains(t, out, "Owner")
}

func TestUploadBrowseFilesAndComment(t *testing.T) {
	e := newTestEnv(t)
	client, _ := e.signIn("Ada")
	ctx := context.Background()

	s, err := client.CreateSession(ctx, api.CreateSessionInput{Title: "Code", Visibility: model.VisibilityLink})
	require.NoError(t, err)

	_, err = e.run("", "upload", s.ID, filepath.Join(t.TempDir(), "notes.txt"))
	assert.EqualError(t, err, "only ZIP files are allowed")

	archive := writeZip(t, map[string]string{
		"main.go":      "package main\n\nfunc main() {}\n",
		"pkg/util.go":  "package pkg\n",
		"pkg/big.json": strings.Repeat("x", 2048),
	})
	out := e.mustRun("upload", "--quiet", s.ID, archive)
	assert.Contains(t, out, "Upload complete.")

	got, err := client.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsReady())

	out = e.mustRun("tree", s.ID)
	assert.Contains(t, out, "pkg/\n")
	assert.Contains(t, out, "  util.go\n")
	assert.Contains(t, out, "main.go\n")

	out = e.mustRun("tree", "--flat", s.ID)
	assert.Contains(t, out, "pkg/util.go\n")

	out = e.mustRun("cat", "-n", s.ID, "main.go")
	assert.Equal(t, "1  package main\n2  \n3  func main() {}\n", out)

	_, err = e.run("", "cat", s.ID, "pkg/big.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large to display")

	out = e.mustRun("comment", "add", s.ID, "main.go", "3", "empty", "main")
	assert.Contains(t, out, "Commented on main.go:3")

	comments, err := client.ListComments(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	rootID := comments[0].ID

	out = e.mustRun("comment", "reply", s.ID, rootID, "on purpose")
	assert.Contains(t, out, "Replied on main.go:3")

	comments, err = client.ListComments(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	for _, c := range comments {
		if !c.IsRoot() {
			assert.Equal(t, rootID, c.ParentComment)
			assert.Equal(t, 3, c.StartLine)
		}
	}

	out = e.mustRun("comments", s.ID)
	assert.Contains(t, out, "main.go\n")
	assert.Contains(t, out, "L3  "+rootID)
	assert.Contains(t, out, "empty main")
	assert.Contains(t, out, "on purpose")

	out = e.mustRun("comment", "resolve", s.ID, rootID)
	assert.Contains(t, out, "Resolved thread "+rootID)

	out = e.mustRun("comments", "--open", s.ID)
	assert.Contains(t, out, "No comments yet.")

	out = e.mustRun("comment", "unresolve", s.ID, rootID)
	assert.Contains(t, out, "Reopened thread")

	out = e.mustRun("sessions", "show", s.ID)
	assert.Contains(t, out, "files:       3")
	assert.Contains(t, out, "1 open, 0 resolved")
}

func TestThreadRootFollowsReplies(t *testing.T) {
	comments := []model.Comment{
		{ID: "r", FilePath: "a.go", StartLine: 4, EndLine: 4},
		{ID: "c1", FilePath: "a.go", StartLine: 4, EndLine: 4, ParentComment: "r"},
		{ID: "orphan", ParentComment: "gone"},
	}

	root, err := threadRoot(comments, "c1")
	require.NoError(t, err)
	assert.Equal(t, "r", root.ID)

	root, err = threadRoot(comments, "r")
	require.NoError(t, err)
	assert.Equal(t, "r", root.ID)

	_, err = threadRoot(comments, "orphan")
	assert.Error(t, err)
	_, err = threadRoot(comments, "missing")
	assert.Error(t, err)
}

func TestInviteTokenParsing(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc123", "abc123"},
		{"/join/abc123", "abc123"},
		{"https://revify.example/join/abc123", "abc123"},
		{"https://revify.example/sessions/abc123", ""},
		{" abc123 ", "abc123"},
	}
	for _, tt := range tests {
		if got := inviteToken(tt.in); got != tt.want {
			t.Errorf("inviteToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStartPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/sessions", "/sessions"},
		{"sessions/42", "/sessions/42"},
		{"https://revify.example/join/tok", "/join/tok"},
		{"http://localhost:3000/login?returnTo=%2Fsessions", "/login?returnTo=%2Fsessions"},
	}
	for _, tt := range tests {
		if got := startPath(tt.in); got != tt.want {
			t.Errorf("startPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "a long...", clip("a long title", 9))
	assert.Equal(t, "ab", clip("abcdef", 2))
}
