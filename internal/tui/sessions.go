package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/model"
	"github.com/sprite-ai/revify/internal/router"
)

type sessionsLoadedMsg struct {
	sessions []model.Session
	err      error
}

type sessionCreatedMsg struct {
	session *model.Session
	err     error
}

type visibilityChangedMsg struct {
	session *model.Session
	err     error
}

type settingsSavedMsg struct {
	session *model.Session
	err     error
}

type sessionDeletedMsg struct {
	id  string
	err error
}

type inviteRefreshedMsg struct {
	id    string
	token string
	err   error
}

// Form fields, in tab order.
const (
	fieldTitle = iota
	fieldDescription
	fieldVisibility
	fieldCount
)

// createForm is the new-session form. With sessionID set it edits that
// session's settings instead.
type createForm struct {
	sessionID   string
	title       textinput.Model
	description textinput.Model
	visibility  model.Visibility
	focus       int
	err         string
}

func newTextInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

func newCreateForm() createForm {
	f := createForm{
		title:       newTextInput("e.g. Code Refactoring", 120),
		description: newTextInput("Short description...", 500),
		visibility:  model.VisibilityLink,
	}
	f.setFocus(fieldTitle)
	return f
}

func newSettingsForm(sess model.Session) createForm {
	f := newCreateForm()
	f.sessionID = sess.ID
	f.title.SetValue(sess.Title)
	f.description.SetValue(sess.Description)
	f.visibility = sess.Visibility
	return f
}

func (f *createForm) setFocus(field int) {
	f.focus = field
	f.title.Blur()
	f.description.Blur()
	switch field {
	case fieldTitle:
		f.title.Focus()
	case fieldDescription:
		f.description.Focus()
	}
}

type sessionsScreen struct {
	env env

	sessions []model.Session
	cursor   int
	loading  bool
	err      string
	notice   string
	failed   bool

	form     *createForm
	creating bool
	confirm  bool
	busy     map[string]bool

	spinner spinner.Model
}

func newSessionsScreen(e env) *sessionsScreen {
	return &sessionsScreen{env: e, spinner: newSpinner(), busy: make(map[string]bool)}
}

func (s *sessionsScreen) Init() tea.Cmd {
	return tea.Batch(s.spinner.Tick, s.load())
}

func (s *sessionsScreen) load() tea.Cmd {
	s.loading = true
	ctx, backend := s.env.ctx, s.env.backend
	return func() tea.Msg {
		list, err := backend.ListSessions(ctx)
		return sessionsLoadedMsg{sessions: list, err: err}
	}
}

func (s *sessionsScreen) selected() *model.Session {
	if s.cursor < 0 || s.cursor >= len(s.sessions) {
		return nil
	}
	return &s.sessions[s.cursor]
}

func (s *sessionsScreen) isOwner(sess *model.Session) bool {
	return sess != nil && sess.OwnedBy(s.env.auth.CurrentUser())
}

func (s *sessionsScreen) setNotice(msg string, failed bool) {
	s.notice = msg
	s.failed = failed
}

func (s *sessionsScreen) replace(updated model.Session) {
	for i := range s.sessions {
		if s.sessions[i].ID == updated.ID {
			s.sessions[i] = updated
			return
		}
	}
}

func (s *sessionsScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case sessionsLoadedMsg:
		s.loading = false
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Msg("loading sessions")
			s.err = "Failed to load sessions."
			return nil
		}
		s.err = ""
		s.sessions = msg.sessions
		s.cursor = min(s.cursor, max(len(s.sessions)-1, 0))
		return nil

	case sessionCreatedMsg:
		s.creating = false
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Msg("creating session")
			if s.form != nil {
				s.form.err = "Failed to create session"
			}
			return nil
		}
		s.sessions = append([]model.Session{*msg.session}, s.sessions...)
		s.cursor = 0
		s.form = nil
		s.setNotice("Created "+msg.session.Title, false)
		return nil

	case visibilityChangedMsg:
		if msg.session != nil {
			delete(s.busy, msg.session.ID)
		}
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Msg("changing visibility")
			s.setNotice("Failed to change visibility", true)
			return nil
		}
		s.replace(*msg.session)
		s.setNotice(msg.session.Title+" is now "+msg.session.Visibility.Label(), false)
		return nil

	case settingsSavedMsg:
		s.creating = false
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Msg("updating session settings")
			if s.form != nil {
				s.form.err = "Failed to update session"
			}
			return nil
		}
		s.replace(*msg.session)
		s.form = nil
		s.setNotice("Saved "+msg.session.Title, false)
		return nil

	case sessionDeletedMsg:
		delete(s.busy, msg.id)
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Msg("deleting session")
			s.setNotice("Failed to delete session", true)
			return nil
		}
		for i := range s.sessions {
			if s.sessions[i].ID == msg.id {
				s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
				break
			}
		}
		s.cursor = min(s.cursor, max(len(s.sessions)-1, 0))
		s.setNotice("Session deleted", false)
		return nil

	case inviteRefreshedMsg:
		delete(s.busy, msg.id)
		if msg.err != nil {
			s.setNotice(api.Message(msg.err, "Failed to generate invite link"), true)
			return nil
		}
		for i := range s.sessions {
			if s.sessions[i].ID == msg.id {
				s.sessions[i].InviteToken = msg.token
				s.showLink(s.sessions[i])
			}
		}
		return nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd

	case tea.KeyMsg:
		if s.form != nil {
			return s.updateForm(msg)
		}
		if s.confirm {
			return s.updateConfirm(msg)
		}
		return s.updateList(msg)
	}
	return nil
}

func (s *sessionsScreen) updateList(msg tea.KeyMsg) tea.Cmd {
	sel := s.selected()
	switch {
	case key.Matches(msg, keys.Up):
		if s.cursor > 0 {
			s.cursor--
		}
	case key.Matches(msg, keys.Down):
		if s.cursor < len(s.sessions)-1 {
			s.cursor++
		}
	case key.Matches(msg, keys.Open):
		if sel != nil {
			return navigate(router.SessionPath(sel.ID))
		}
	case key.Matches(msg, keys.New):
		f := newCreateForm()
		s.form = &f
		s.notice = ""
	case key.Matches(msg, keys.Refresh):
		return s.load()
	case key.Matches(msg, keys.Back):
		return goBack
	case sel == nil:
	case key.Matches(msg, keys.Link):
		s.showLink(*sel)
	case !s.isOwner(sel) || s.busy[sel.ID]:
	case key.Matches(msg, keys.Cycle):
		return s.cycleVisibility(*sel)
	case key.Matches(msg, keys.Edit):
		f := newSettingsForm(*sel)
		s.form = &f
		s.notice = ""
	case key.Matches(msg, keys.Invite):
		return s.refreshInvite(sel.ID)
	case key.Matches(msg, keys.Delete):
		s.confirm = true
	}
	return nil
}

func (s *sessionsScreen) showLink(sess model.Session) {
	link, err := router.ShareLink(s.env.webURL, sess)
	if errors.Is(err, router.ErrNoInviteToken) {
		s.setNotice("Invite token not found. Press i to generate one.", true)
		return
	}
	s.setNotice("Link: "+link, false)
}

func (s *sessionsScreen) cycleVisibility(sess model.Session) tea.Cmd {
	next := sess.Visibility.Next()
	s.busy[sess.ID] = true
	ctx, backend := s.env.ctx, s.env.backend
	return func() tea.Msg {
		updated, err := backend.UpdateSessionSettings(ctx, sess.ID, api.SessionSettings{Visibility: &next})
		if err != nil {
			return visibilityChangedMsg{session: &sess, err: err}
		}
		return visibilityChangedMsg{session: updated}
	}
}

func (s *sessionsScreen) refreshInvite(id string) tea.Cmd {
	s.busy[id] = true
	ctx, backend := s.env.ctx, s.env.backend
	return func() tea.Msg {
		token, err := backend.RefreshInviteToken(ctx, id)
		return inviteRefreshedMsg{id: id, token: token, err: err}
	}
}

func (s *sessionsScreen) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Confirm):
		s.confirm = false
		sel := s.selected()
		if sel == nil {
			return nil
		}
		id := sel.ID
		s.busy[id] = true
		ctx, backend := s.env.ctx, s.env.backend
		return func() tea.Msg {
			return sessionDeletedMsg{id: id, err: backend.DeleteSession(ctx, id)}
		}
	case key.Matches(msg, keys.Cancel):
		s.confirm = false
	}
	return nil
}

func (s *sessionsScreen) updateForm(msg tea.KeyMsg) tea.Cmd {
	f := s.form
	switch {
	case key.Matches(msg, dismiss):
		s.form = nil
		return nil
	case key.Matches(msg, nextField):
		f.setFocus((f.focus + 1) % fieldCount)
		return nil
	case key.Matches(msg, submit):
		return s.create()
	}

	var cmd tea.Cmd
	switch f.focus {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
	case fieldDescription:
		f.description, cmd = f.description.Update(msg)
	case fieldVisibility:
		switch msg.String() {
		case " ", "right", "l":
			f.visibility = f.visibility.Next()
		case "left", "h":
			for range len(model.Visibilities) - 1 {
				f.visibility = f.visibility.Next()
			}
		}
	}
	return cmd
}

func (s *sessionsScreen) create() tea.Cmd {
	f := s.form
	if s.creating {
		return nil
	}
	title := strings.TrimSpace(f.title.Value())
	if title == "" {
		f.err = "Title is required"
		f.setFocus(fieldTitle)
		return nil
	}
	f.err = ""
	if f.sessionID != "" {
		return s.saveSettings(title)
	}
	s.creating = true
	in := api.CreateSessionInput{
		Title:             title,
		Description:       strings.TrimSpace(f.description.Value()),
		Visibility:        f.visibility,
		CommentPermission: model.CommentEveryone,
	}
	ctx, backend := s.env.ctx, s.env.backend
	return func() tea.Msg {
		sess, err := backend.CreateSession(ctx, in)
		return sessionCreatedMsg{session: sess, err: err}
	}
}

// saveSettings sends only the fields the form changed.
func (s *sessionsScreen) saveSettings(title string) tea.Cmd {
	f := s.form
	var orig *model.Session
	for i := range s.sessions {
		if s.sessions[i].ID == f.sessionID {
			orig = &s.sessions[i]
		}
	}
	if orig == nil {
		s.form = nil
		return nil
	}

	var in api.SessionSettings
	if title != orig.Title {
		in.Title = &title
	}
	if desc := strings.TrimSpace(f.description.Value()); desc != orig.Description {
		in.Description = &desc
	}
	if vis := f.visibility; vis != orig.Visibility {
		in.Visibility = &vis
	}
	if in.Title == nil && in.Description == nil && in.Visibility == nil {
		s.form = nil
		return nil
	}

	s.creating = true
	id := f.sessionID
	ctx, backend := s.env.ctx, s.env.backend
	return func() tea.Msg {
		updated, err := backend.UpdateSessionSettings(ctx, id, in)
		return settingsSavedMsg{session: updated, err: err}
	}
}

func (s *sessionsScreen) View(width, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Your Sessions"))
	b.WriteString("\n")
	b.WriteString(metaStyle.Render("Manage your code review sessions here."))
	b.WriteString("\n\n")
	if s.err != "" {
		b.WriteString(errorStyle.Render(s.err))
		b.WriteString("\n\n")
	}

	listWidth := width
	var side string
	if s.form != nil {
		formWidth := min(48, width/2)
		listWidth = width - formWidth - 1
		side = s.renderForm(formWidth)
	}

	list := s.renderList(listWidth, height-lipgloss.Height(b.String())-2)
	if side != "" {
		list = lipgloss.JoinHorizontal(lipgloss.Top, side, " ", list)
	}
	b.WriteString(list)

	switch {
	case s.confirm:
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("Are you sure you want to delete this session? This action cannot be undone. (y/n)"))
	case s.notice != "":
		b.WriteString("\n")
		if s.failed {
			b.WriteString(errorStyle.Render(s.notice))
		} else {
			b.WriteString(noticeStyle.Render(s.notice))
		}
	}
	return b.String()
}

func (s *sessionsScreen) renderList(width, height int) string {
	if s.loading && len(s.sessions) == 0 {
		return s.spinner.View() + " Loading sessions..."
	}
	if len(s.sessions) == 0 {
		return metaStyle.Render("No sessions found. Create one to get started!")
	}

	// Each entry takes three lines plus a gap.
	perPage := max(height/4, 1)
	start := 0
	if s.cursor >= perPage {
		start = s.cursor - perPage + 1
	}
	end := min(start+perPage, len(s.sessions))

	var b strings.Builder
	for i := start; i < end; i++ {
		sess := s.sessions[i]
		style := itemStyle
		marker := "  "
		if i == s.cursor {
			style = itemSelectedStyle
			marker = "> "
		}
		title := truncate(sess.Title, width-16)
		b.WriteString(marker + style.Render(title) + " " + visibilityBadge(sess.Visibility))
		if s.busy[sess.ID] {
			b.WriteString(" " + s.spinner.View())
		}
		b.WriteString("\n")
		desc := sess.Description
		if desc == "" {
			desc = "No description"
		}
		b.WriteString("  " + metaStyle.Render(truncate(desc, width-4)) + "\n")
		b.WriteString("  " + metaStyle.Render(fmt.Sprintf("Owner: %s • %s", sess.Owner.Name(), sess.CreatedAt.Local().Format("2006-01-02"))))
		if i < end-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func (s *sessionsScreen) renderForm(width int) string {
	f := s.form
	label := func(field int, text string) string {
		if f.focus == field {
			return headerStyle.Render(text)
		}
		return metaStyle.Render(text)
	}

	heading, action, verb := "Create New Session", "create", "Creating..."
	if f.sessionID != "" {
		heading, action, verb = "Session Settings", "save", "Saving..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(heading))
	b.WriteString("\n")
	b.WriteString(label(fieldTitle, "Title") + "\n")
	b.WriteString(f.title.View() + "\n\n")
	b.WriteString(label(fieldDescription, "Description") + "\n")
	b.WriteString(f.description.View() + "\n\n")
	b.WriteString(label(fieldVisibility, "Visibility") + "\n")
	b.WriteString("< " + visibilityBadge(f.visibility) + " >\n\n")
	switch {
	case s.creating:
		b.WriteString(s.spinner.View() + " " + verb)
	case f.err != "":
		b.WriteString(errorStyle.Render(f.err))
	default:
		b.WriteString(metaStyle.Render("enter " + action + " • tab next • esc cancel"))
	}
	return paneFocusedStyle.Width(width).Render(b.String())
}

func visibilityBadge(v model.Visibility) string {
	text := "[" + strings.ToUpper(v.Label()) + "]"
	switch v {
	case model.VisibilityPrivate:
		return visPrivateStyle.Render(text)
	case model.VisibilityPublic:
		return visPublicStyle.Render(text)
	default:
		return visLinkStyle.Render(text)
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}

func (s *sessionsScreen) Help() []key.Binding {
	switch {
	case s.form != nil:
		return []key.Binding{submit, nextField, dismiss}
	case s.confirm:
		return []key.Binding{keys.Confirm, keys.Cancel}
	}
	return []key.Binding{keys.Open, keys.New, keys.Edit, keys.Cycle, keys.Link, keys.Delete, keys.Quit}
}

func (s *sessionsScreen) Capturing() bool { return s.form != nil || s.confirm }

func (s *sessionsScreen) Close() {}
