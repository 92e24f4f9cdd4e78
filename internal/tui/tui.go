// Package tui implements the Bubble Tea terminal user interface.
//
// The App owns navigation: every path change is matched against the router,
// passed through the route guard and then handed to a screen. Screens own
// their state and talk to the backend through commands; results come back as
// messages on the single update loop.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/auth"
	"github.com/sprite-ai/revify/internal/model"
	"github.com/sprite-ai/revify/internal/router"
	"github.com/sprite-ai/revify/internal/upload"
)

// Backend is the part of the API the screens use. *api.Client satisfies it.
type Backend interface {
	ListSessions(ctx context.Context) ([]model.Session, error)
	CreateSession(ctx context.Context, in api.CreateSessionInput) (*model.Session, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	UpdateSessionSettings(ctx context.Context, id string, in api.SessionSettings) (*model.Session, error)
	RefreshInviteToken(ctx context.Context, id string) (string, error)
	JoinSession(ctx context.Context, token string) (string, error)
	FileTree(ctx context.Context, sessionID string) ([]model.FileNode, error)
	FileContent(ctx context.Context, sessionID, path string) (string, error)
	ListComments(ctx context.Context, sessionID string) ([]model.Comment, error)
	CreateComment(ctx context.Context, sessionID string, in api.NewComment) (*model.Comment, error)
	SetResolved(ctx context.Context, sessionID, commentID string, resolved bool) (*model.Comment, error)
	upload.Uploader
}

// Options configures the App.
type Options struct {
	Backend Backend
	Auth    *auth.Store
	// Connector opens upload event streams.
	Connector upload.Connector
	// WebURL is the origin used for share links.
	WebURL string
	// OpenURL opens a link in the user's browser. May be nil.
	OpenURL func(string) error
	// Start is the first path shown. Defaults to "/".
	Start  string
	Logger zerolog.Logger
}

// screen is one page of the application.
type screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int) string
	// Help lists the bindings shown in the status bar.
	Help() []key.Binding
	// Capturing reports whether a text field has the keyboard.
	Capturing() bool
	// Close releases what the screen holds open.
	Close()
}

// env is what every screen gets.
type env struct {
	ctx       context.Context
	backend   Backend
	auth      *auth.Store
	connector upload.Connector
	webURL    string
	openURL   func(string) error
	log       zerolog.Logger
}

type navigateMsg struct {
	path    string
	replace bool
}

type backMsg struct{}

type authReadyMsg struct{}

// navigate moves to path, keeping the current page in history.
func navigate(path string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{path: path} }
}

// redirect moves to path in place of the current page.
func redirect(path string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{path: path, replace: true} }
}

func goBack() tea.Msg { return backMsg{} }

// App is the top-level Bubble Tea model for revify.
type App struct {
	env env

	width  int
	height int

	route   router.Route
	history []string
	screen  screen
	waiting bool
	spinner spinner.Model

	showHelp bool
	initCmd  tea.Cmd
}

// New creates the application positioned at opts.Start.
func New(ctx context.Context, opts Options) App {
	start := opts.Start
	if start == "" {
		start = "/"
	}
	a := App{
		env: env{
			ctx:       ctx,
			backend:   opts.Backend,
			auth:      opts.Auth,
			connector: opts.Connector,
			webURL:    strings.TrimRight(opts.WebURL, "/"),
			openURL:   opts.OpenURL,
			log:       opts.Logger,
		},
		spinner: newSpinner(),
	}
	a.initCmd = a.show(start, false)
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.checkAuth(), a.initCmd)
}

func (a App) checkAuth() tea.Cmd {
	store, ctx := a.env.auth, a.env.ctx
	return func() tea.Msg {
		store.Init(ctx)
		return authReadyMsg{}
	}
}

// show switches to path after consulting the route guard.
func (a *App) show(path string, push bool) tea.Cmd {
	route := router.Match(path)
	decision := router.Guard(a.env.auth, route)
	a.env.log.Debug().Str("path", path).Str("route", route.Name.String()).Int("outcome", int(decision.Outcome)).Msg("navigate")

	switch decision.Outcome {
	case router.Redirect:
		return a.show(decision.Target, push)
	case router.Wait:
		a.replaceScreen(nil, route, push)
		a.waiting = true
		return a.spinner.Tick
	}

	a.replaceScreen(a.build(route), route, push)
	return a.screen.Init()
}

func (a *App) replaceScreen(s screen, route router.Route, push bool) {
	if a.screen != nil {
		a.screen.Close()
	}
	if push && a.route.Path != "" {
		a.history = append(a.history, a.route.Path)
	}
	a.route = route
	a.screen = s
	a.waiting = false
}

func (a *App) build(route router.Route) screen {
	switch route.Name {
	case router.Home:
		return newHomeScreen(a.env)
	case router.Login:
		return newLoginScreen(a.env, route.Query.Get("returnTo"))
	case router.Join:
		return newJoinScreen(a.env, route.Param("token"))
	case router.Sessions:
		return newSessionsScreen(a.env)
	case router.SessionDetail:
		return newDetailScreen(a.env, route.Param("id"))
	default:
		return newNotFoundScreen(route.Path)
	}
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case navigateMsg:
		return a, a.show(msg.path, !msg.replace)

	case backMsg:
		if len(a.history) == 0 {
			return a, a.show("/", false)
		}
		prev := a.history[len(a.history)-1]
		a.history = a.history[:len(a.history)-1]
		return a, a.show(prev, false)

	case authReadyMsg:
		if a.waiting {
			return a, a.show(a.route.Path, false)
		}
		if a.screen != nil {
			return a, a.screen.Update(msg)
		}
		return a, nil

	case spinner.TickMsg:
		if msg.ID == a.spinner.ID() {
			if !a.waiting {
				return a, nil
			}
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}

	case tea.KeyMsg:
		capturing := a.screen != nil && a.screen.Capturing()
		switch {
		case key.Matches(msg, forceQuit):
			return a, a.quit()
		case capturing:
		case key.Matches(msg, keys.Quit):
			return a, a.quit()
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			return a, nil
		case a.showHelp:
			a.showHelp = false
			return a, nil
		}
	}

	if a.screen == nil {
		return a, nil
	}
	return a, a.screen.Update(msg)
}

func (a *App) quit() tea.Cmd {
	if a.screen != nil {
		a.screen.Close()
	}
	return tea.Quit
}

// Close releases the current screen. Run calls it when the program exits.
func (a App) Close() {
	if a.screen != nil {
		a.screen.Close()
	}
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Loading..."
	}
	if a.showHelp {
		return a.renderHelp()
	}

	nav := a.renderNav()
	status := a.renderStatusBar()
	bodyHeight := a.height - lipgloss.Height(nav) - lipgloss.Height(status)

	var body string
	if a.waiting || a.screen == nil {
		body = lipgloss.Place(a.width, bodyHeight, lipgloss.Center, lipgloss.Center,
			a.spinner.View()+" Checking sign-in...")
	} else {
		body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).
			Render(a.screen.View(a.width, bodyHeight))
	}
	return lipgloss.JoinVertical(lipgloss.Left, nav, body, status)
}

func (a App) renderNav() string {
	left := headerStyle.Render(" Revify") + metaStyle.Render("  Home (/)  Sessions (s)")
	right := metaStyle.Render("signed out ")
	if a.env.auth.Loading() {
		right = metaStyle.Render("... ")
	} else if u := a.env.auth.CurrentUser(); u != nil {
		right = itemStyle.Render(u.DisplayName + " ")
	}
	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right + "\n"
}

func (a App) renderStatusBar() string {
	left := " " + a.route.Path
	var parts []string
	if a.screen != nil {
		for _, b := range a.screen.Help() {
			h := b.Help()
			parts = append(parts, statusKeyStyle.Render(h.Key)+statusBarStyle.UnsetPadding().Render(" "+h.Desc))
		}
	}
	parts = append(parts, statusKeyStyle.Render("?")+statusBarStyle.UnsetPadding().Render(" help"))
	right := strings.Join(parts, statusBarStyle.UnsetPadding().Render("  ")) + " "

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 0 {
		gap = 0
	}
	return statusBarStyle.Width(a.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (a App) renderHelp() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("revify: Keyboard Shortcuts"))
	b.WriteString("\n\n")

	all := []key.Binding{
		keys.Up, keys.Down, keys.Open, keys.Back, keys.Pane,
		keys.New, keys.Cycle, keys.Link, keys.Invite, keys.Delete,
		keys.Comment, keys.Reply, keys.Resolve, keys.Upload, keys.Refresh,
		keys.Sessions, keys.Login, keys.Browser, keys.Help, keys.Quit,
	}
	for _, item := range all {
		h := item.Help()
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			helpKeyStyle.Width(12).Render(h.Key),
			h.Desc,
		))
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press any key to close help"))

	return b.String()
}

// Run starts the TUI application.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if app, ok := final.(App); ok {
		app.Close()
	}
	return err
}
