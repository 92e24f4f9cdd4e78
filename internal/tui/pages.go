package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/router"
)

func centered(width, height int, lines ...string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, lines...))
}

func newSpinner() spinner.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPurple)
	return sp
}

// --- Home ---

type homeScreen struct {
	env env
}

func newHomeScreen(e env) *homeScreen { return &homeScreen{env: e} }

func (s *homeScreen) Init() tea.Cmd { return nil }

func (s *homeScreen) Update(msg tea.Msg) tea.Cmd {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch {
	case key.Matches(km, keys.Sessions):
		return navigate("/sessions")
	case key.Matches(km, keys.Login):
		return navigate(router.LoginPath(""))
	}
	return nil
}

func (s *homeScreen) View(width, height int) string {
	hint := "Press L to sign in, or s to go to your sessions."
	if u := s.env.auth.CurrentUser(); u != nil {
		hint = "Signed in as " + u.DisplayName + ". Press s to go to your sessions."
	}
	return centered(width, height,
		titleStyle.Render("Welcome to Revify"),
		itemStyle.Render("Instant Code Review without PRs."),
		"",
		metaStyle.Render(hint),
	)
}

func (s *homeScreen) Help() []key.Binding { return []key.Binding{keys.Sessions, keys.Login, keys.Quit} }
func (s *homeScreen) Capturing() bool     { return false }
func (s *homeScreen) Close()              {}

// --- Login ---

type loginScreen struct {
	env      env
	returnTo string
	notice   string
}

func newLoginScreen(e env, returnTo string) *loginScreen {
	return &loginScreen{env: e, returnTo: returnTo}
}

func (s *loginScreen) Init() tea.Cmd { return s.leaveIfSignedIn() }

func (s *loginScreen) leaveIfSignedIn() tea.Cmd {
	if !s.env.auth.SignedIn() {
		return nil
	}
	dest := s.returnTo
	if dest == "" {
		dest = "/"
	}
	return redirect(dest)
}

func (s *loginScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case authReadyMsg:
		return s.leaveIfSignedIn()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Browser):
			if s.env.openURL == nil {
				s.notice = "No browser available; open the link above manually."
				return nil
			}
			if err := s.env.openURL(s.env.auth.LoginURL(s.returnTo)); err != nil {
				s.notice = "Could not open browser: " + err.Error()
				return nil
			}
			s.notice = "Browser opened. Finish signing in, then run `revify login --cookie ...`."
		case key.Matches(msg, keys.Back):
			return goBack
		}
	}
	return nil
}

func (s *loginScreen) View(width, height int) string {
	lines := []string{
		titleStyle.Render("Sign in"),
		itemStyle.Render("Continue with Google:"),
		dirStyle.Render(s.env.auth.LoginURL(s.returnTo)),
		"",
		metaStyle.Render("Press o to open it in your browser."),
	}
	if s.notice != "" {
		lines = append(lines, "", noticeStyle.Render(s.notice))
	}
	return centered(width, height, lines...)
}

func (s *loginScreen) Help() []key.Binding { return []key.Binding{keys.Browser, keys.Back, keys.Quit} }
func (s *loginScreen) Capturing() bool     { return false }
func (s *loginScreen) Close()              {}

// --- Join ---

type joinedMsg struct {
	sessionID string
	err       error
}

type joinScreen struct {
	env     env
	token   string
	joining bool
	err     string
	spinner spinner.Model
}

func newJoinScreen(e env, token string) *joinScreen {
	return &joinScreen{env: e, token: token, spinner: newSpinner()}
}

func (s *joinScreen) Init() tea.Cmd {
	return tea.Batch(s.spinner.Tick, s.join())
}

// join redeems the token once the user is known. While the identity check
// runs, or without a user, it does nothing.
func (s *joinScreen) join() tea.Cmd {
	if s.joining || s.env.auth.Loading() || !s.env.auth.SignedIn() {
		return nil
	}
	s.joining = true
	ctx, backend, token := s.env.ctx, s.env.backend, s.token
	return func() tea.Msg {
		id, err := backend.JoinSession(ctx, token)
		return joinedMsg{sessionID: id, err: err}
	}
}

func (s *joinScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case authReadyMsg:
		return s.join()
	case joinedMsg:
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Msg("joining session")
			s.err = api.Message(msg.err, "Invalid invite link")
			return nil
		}
		return redirect(router.SessionPath(msg.sessionID))
	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Login) && !s.env.auth.Loading() && !s.env.auth.SignedIn():
			return navigate(router.LoginPath(router.JoinPath(s.token)))
		case key.Matches(msg, keys.Back):
			return navigate("/")
		}
	}
	return nil
}

func (s *joinScreen) View(width, height int) string {
	switch {
	case s.env.auth.Loading():
		return centered(width, height, s.spinner.View())
	case !s.env.auth.SignedIn():
		return centered(width, height,
			titleStyle.Render("Join Private Session"),
			metaStyle.Render("You need to sign in to join this session."),
			"",
			helpKeyStyle.Render("L")+" Sign in with Google",
		)
	case s.err != "":
		return centered(width, height,
			errorStyle.Bold(true).Render("Failed to Join"),
			metaStyle.Render(s.err),
			"",
			helpKeyStyle.Render("esc")+" Go Home",
		)
	default:
		return centered(width, height, s.spinner.View()+" Joining session...")
	}
}

func (s *joinScreen) Help() []key.Binding { return []key.Binding{keys.Login, keys.Back, keys.Quit} }
func (s *joinScreen) Capturing() bool     { return false }
func (s *joinScreen) Close()              {}

// --- Not found ---

type notFoundScreen struct {
	path string
}

func newNotFoundScreen(path string) *notFoundScreen { return &notFoundScreen{path: path} }

func (s *notFoundScreen) Init() tea.Cmd { return nil }

func (s *notFoundScreen) Update(msg tea.Msg) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok && (key.Matches(km, keys.Back) || key.Matches(km, keys.Open)) {
		return navigate("/")
	}
	return nil
}

func (s *notFoundScreen) View(width, height int) string {
	return centered(width, height,
		titleStyle.Render("404"),
		metaStyle.Render("Page not found."),
		metaStyle.Render(strings.TrimSpace(s.path)),
		"",
		helpKeyStyle.Render("enter")+" Go Home",
	)
}

func (s *notFoundScreen) Help() []key.Binding { return []key.Binding{keys.Open, keys.Quit} }
func (s *notFoundScreen) Capturing() bool     { return false }
func (s *notFoundScreen) Close()              {}
