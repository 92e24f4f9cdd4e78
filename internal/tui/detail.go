package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/correlate"
	"github.com/sprite-ai/revify/internal/highlight"
	"github.com/sprite-ai/revify/internal/model"
	"github.com/sprite-ai/revify/internal/thread"
	"github.com/sprite-ai/revify/internal/tree"
	"github.com/sprite-ai/revify/internal/upload"
)

// Request slots of the detail screen.
const (
	slotSession  = "session"
	slotContents = "contents"
	slotComments = "comments"
	slotFile     = "file"
)

type ticket = correlate.Ticket[string]

type sessionLoadedMsg struct {
	ticket  ticket
	session *model.Session
	err     error
}

type contentsLoadedMsg struct {
	ticket   ticket
	files    []model.FileNode
	comments []model.Comment
	err      error
}

type commentsLoadedMsg struct {
	ticket   ticket
	comments []model.Comment
	err      error
}

type fileLoadedMsg struct {
	ticket  ticket
	content string
	err     error
}

type commentPostedMsg struct{ err error }

type commentResolvedMsg struct{ err error }

type uploadStartedMsg struct{ err error }

type uploadStateMsg struct {
	state upload.State
	err   error
}

type pane int

const (
	paneTree pane = iota
	paneCode
	paneComments
)

type inputKind int

const (
	inputNone inputKind = iota
	inputComment
	inputReply
	inputUpload
)

type detailScreen struct {
	env     env
	id      string
	tickets correlate.Latest[string]

	session *model.Session
	loading bool
	err     string

	roots      []*tree.Node
	expanded   map[string]bool
	rows       []tree.Row
	treeCursor int
	treeErr    string

	comments     []model.Comment
	threads      []thread.Thread
	counts       map[int]int
	threadCursor int

	file        string
	lines       []highlight.Line
	fileLoading bool
	fileErr     string
	active      int
	offset      int

	focus   pane
	input   textinput.Model
	kind    inputKind
	replyTo *model.Comment
	posting bool
	notice  string

	tracker    *upload.Tracker
	uploadDone atomic.Bool
	bar        progress.Model
	spinner    spinner.Model

	codeHeight int
}

func newDetailScreen(e env, id string) *detailScreen {
	s := &detailScreen{
		env:      e,
		id:       id,
		expanded: make(map[string]bool),
		spinner:  newSpinner(),
		bar:      progress.New(progress.WithGradient(string(colorPurple), string(colorPink))),
	}
	s.tracker = upload.NewTracker(e.backend, e.connector, func() { s.uploadDone.Store(true) })
	return s
}

func (s *detailScreen) Init() tea.Cmd {
	return tea.Batch(s.spinner.Tick, s.loadSession())
}

func (s *detailScreen) loadSession() tea.Cmd {
	s.loading = true
	t := s.tickets.Issue(slotSession, s.id)
	ctx, backend, id := s.env.ctx, s.env.backend, s.id
	return func() tea.Msg {
		sess, err := backend.GetSession(ctx, id)
		return sessionLoadedMsg{ticket: t, session: sess, err: err}
	}
}

// loadContents fetches the file tree and comments together.
func (s *detailScreen) loadContents() tea.Cmd {
	t := s.tickets.Issue(slotContents, s.id)
	ctx, backend, id := s.env.ctx, s.env.backend, s.id
	return func() tea.Msg {
		var (
			files    []model.FileNode
			comments []model.Comment
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			if files, err = backend.FileTree(gctx, id); err != nil {
				return fmt.Errorf("loading file tree: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if comments, err = backend.ListComments(gctx, id); err != nil {
				return fmt.Errorf("loading comments: %w", err)
			}
			return nil
		})
		err := g.Wait()
		return contentsLoadedMsg{ticket: t, files: files, comments: comments, err: err}
	}
}

func (s *detailScreen) loadComments() tea.Cmd {
	t := s.tickets.Issue(slotComments, s.id)
	ctx, backend, id := s.env.ctx, s.env.backend, s.id
	return func() tea.Msg {
		comments, err := backend.ListComments(ctx, id)
		return commentsLoadedMsg{ticket: t, comments: comments, err: err}
	}
}

func (s *detailScreen) openFile(path string) tea.Cmd {
	s.file = path
	s.lines = nil
	s.fileErr = ""
	s.fileLoading = true
	s.active = 1
	s.offset = 0
	s.threadCursor = 0
	s.rebuildThreads()

	t := s.tickets.Issue(slotFile, path)
	ctx, backend, id := s.env.ctx, s.env.backend, s.id
	return func() tea.Msg {
		content, err := backend.FileContent(ctx, id, path)
		return fileLoadedMsg{ticket: t, content: content, err: err}
	}
}

func (s *detailScreen) rebuildThreads() {
	s.threads = thread.Build(s.comments, s.file)
	s.counts = thread.LineCounts(s.threads)
	s.threadCursor = min(s.threadCursor, max(len(s.threads)-1, 0))
}

func (s *detailScreen) isOwner() bool {
	return s.session != nil && s.session.OwnedBy(s.env.auth.CurrentUser())
}

func (s *detailScreen) ready() bool {
	return s.session != nil && s.session.IsReady()
}

func (s *detailScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case sessionLoadedMsg:
		if !s.tickets.Accept(slotSession, msg.ticket) {
			return nil
		}
		s.loading = false
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Str("session", s.id).Msg("loading session")
			s.err = "Failed to load session details."
			return nil
		}
		s.err = ""
		s.session = msg.session
		if s.ready() {
			return s.loadContents()
		}
		return nil

	case contentsLoadedMsg:
		if !s.tickets.Accept(slotContents, msg.ticket) {
			return nil
		}
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Str("session", s.id).Msg("loading session contents")
			s.treeErr = "Failed to load file tree"
			return nil
		}
		s.treeErr = ""
		s.roots = tree.Build(msg.files)
		s.rows = tree.Visible(s.roots, s.expanded)
		s.treeCursor = min(s.treeCursor, max(len(s.rows)-1, 0))
		s.comments = msg.comments
		s.rebuildThreads()
		return nil

	case commentsLoadedMsg:
		if !s.tickets.Accept(slotComments, msg.ticket) {
			return nil
		}
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Msg("refreshing comments")
			return nil
		}
		s.comments = msg.comments
		s.rebuildThreads()
		return nil

	case fileLoadedMsg:
		if !s.tickets.Accept(slotFile, msg.ticket) || msg.ticket.Key != s.file {
			return nil
		}
		s.fileLoading = false
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Str("path", s.file).Msg("loading file")
			if errors.Is(msg.err, api.ErrFileTooLarge) {
				s.fileErr = "File is too large to display."
			} else {
				s.fileErr = "Failed to load file content."
			}
			return nil
		}
		language := ""
		if n := tree.Find(s.roots, s.file); n != nil {
			language = n.Language
		}
		s.lines = highlight.Source(s.file, language, msg.content)
		return nil

	case commentPostedMsg:
		s.posting = false
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Msg("posting comment")
			s.notice = "Failed to post comment"
			return nil
		}
		s.closeInput()
		s.notice = ""
		return s.loadComments()

	case commentResolvedMsg:
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Msg("resolving comment")
			s.notice = "Failed to update status"
			return nil
		}
		s.notice = ""
		return s.loadComments()

	case uploadStartedMsg:
		if msg.err != nil {
			s.env.log.Warn().Err(msg.err).Msg("starting upload")
			return nil
		}
		return s.waitUpload()

	case uploadStateMsg:
		if s.uploadDone.Swap(false) {
			return s.loadSession()
		}
		if msg.err != nil || msg.state.Phase.Terminal() {
			return nil
		}
		return s.waitUpload()

	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd

	case tea.KeyMsg:
		if s.kind != inputNone {
			return s.updateInput(msg)
		}
		return s.updateKeys(msg)
	}
	return nil
}

func (s *detailScreen) waitUpload() tea.Cmd {
	tr := s.tracker
	return func() tea.Msg {
		st, err := tr.Next()
		return uploadStateMsg{state: st, err: err}
	}
}

func (s *detailScreen) updateKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Back):
		return navigate("/sessions")
	case key.Matches(msg, keys.Refresh):
		return s.loadSession()
	case s.session == nil:
		return nil
	case !s.ready():
		if key.Matches(msg, keys.Upload) && s.isOwner() {
			return s.beginUpload()
		}
		return nil
	case key.Matches(msg, keys.Pane):
		if msg.String() == "shift+tab" {
			s.focus = (s.focus + 2) % 3
		} else {
			s.focus = (s.focus + 1) % 3
		}
		return nil
	case key.Matches(msg, keys.Comment):
		if s.file != "" && len(s.lines) > 0 {
			s.openInput(inputComment, fmt.Sprintf("Comment on line %d...", s.active))
		}
		return nil
	}

	switch s.focus {
	case paneTree:
		return s.updateTree(msg)
	case paneCode:
		s.updateCode(msg)
	case paneComments:
		return s.updateComments(msg)
	}
	return nil
}

func (s *detailScreen) updateTree(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Up):
		if s.treeCursor > 0 {
			s.treeCursor--
		}
	case key.Matches(msg, keys.Down):
		if s.treeCursor < len(s.rows)-1 {
			s.treeCursor++
		}
	case key.Matches(msg, keys.Open):
		if s.treeCursor >= len(s.rows) {
			return nil
		}
		n := s.rows[s.treeCursor].Node
		if n.IsDirectory {
			s.expanded[n.Path] = !s.expanded[n.Path]
			s.rows = tree.Visible(s.roots, s.expanded)
			return nil
		}
		s.focus = paneCode
		return s.openFile(n.Path)
	}
	return nil
}

func (s *detailScreen) updateCode(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, keys.Up):
		if s.active > 1 {
			s.active--
		}
	case key.Matches(msg, keys.Down):
		if s.active < len(s.lines) {
			s.active++
		}
	}
	s.scrollToActive()
}

func (s *detailScreen) scrollToActive() {
	h := max(s.codeHeight, 1)
	switch {
	case s.active-1 < s.offset:
		s.offset = s.active - 1
	case s.active-1 >= s.offset+h:
		s.offset = s.active - h
	}
}

func (s *detailScreen) updateComments(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Up):
		if s.threadCursor > 0 {
			s.threadCursor--
		}
	case key.Matches(msg, keys.Down):
		if s.threadCursor < len(s.threads)-1 {
			s.threadCursor++
		}
	case key.Matches(msg, keys.Open):
		if t := s.selectedThread(); t != nil {
			s.active = t.Root.StartLine
			s.scrollToActive()
		}
	case key.Matches(msg, keys.Reply):
		if t := s.selectedThread(); t != nil {
			root := t.Root
			s.replyTo = &root
			s.openInput(inputReply, "Reply...")
		}
	case key.Matches(msg, keys.Resolve):
		if t := s.selectedThread(); t != nil {
			id, resolved := t.Root.ID, !t.Root.Resolved
			ctx, backend, sid := s.env.ctx, s.env.backend, s.id
			return func() tea.Msg {
				_, err := backend.SetResolved(ctx, sid, id, resolved)
				return commentResolvedMsg{err: err}
			}
		}
	}
	return nil
}

func (s *detailScreen) selectedThread() *thread.Thread {
	if s.threadCursor < 0 || s.threadCursor >= len(s.threads) {
		return nil
	}
	return &s.threads[s.threadCursor]
}

func (s *detailScreen) beginUpload() tea.Cmd {
	st := s.tracker.State()
	switch st.Phase {
	case upload.Uploading, upload.Processing:
		return nil
	case upload.Done, upload.Failed:
		s.tracker.Reset()
	}
	s.openInput(inputUpload, "path/to/project.zip")
	return nil
}

func (s *detailScreen) openInput(kind inputKind, placeholder string) {
	s.kind = kind
	s.notice = ""
	limit := 5000
	if kind == inputUpload {
		limit = 1024
	}
	s.input = newTextInput(placeholder, limit)
	s.input.Focus()
}

func (s *detailScreen) closeInput() {
	s.kind = inputNone
	s.replyTo = nil
	s.input.Blur()
}

func (s *detailScreen) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, dismiss):
		s.closeInput()
		return nil
	case key.Matches(msg, submit):
		switch s.kind {
		case inputUpload:
			return s.startUpload(strings.TrimSpace(s.input.Value()))
		default:
			return s.postComment(strings.TrimSpace(s.input.Value()))
		}
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

func (s *detailScreen) postComment(content string) tea.Cmd {
	if content == "" || s.posting || s.file == "" {
		return nil
	}
	in := api.NewComment{
		FilePath:  s.file,
		StartLine: s.active,
		EndLine:   s.active,
		Content:   content,
	}
	if s.kind == inputReply && s.replyTo != nil {
		in.StartLine = s.replyTo.StartLine
		in.EndLine = s.replyTo.EndLine
		in.ParentComment = s.replyTo.ID
	}
	s.posting = true
	ctx, backend, id := s.env.ctx, s.env.backend, s.id
	return func() tea.Msg {
		_, err := backend.CreateComment(ctx, id, in)
		return commentPostedMsg{err: err}
	}
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

func (s *detailScreen) startUpload(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	if err := s.tracker.Select(expandHome(path)); err != nil {
		if errors.Is(err, upload.ErrNotZip) {
			s.notice = "Only ZIP files are allowed."
		} else {
			s.notice = err.Error()
		}
		return nil
	}
	s.closeInput()
	tr, ctx, id := s.tracker, s.env.ctx, s.id
	return func() tea.Msg {
		return uploadStartedMsg{err: tr.Start(ctx, id)}
	}
}

// --- View ---

func (s *detailScreen) View(width, height int) string {
	switch {
	case s.loading && s.session == nil:
		return centered(width, height, s.spinner.View())
	case s.session == nil:
		msg := s.err
		if msg == "" {
			msg = "Session not found"
		}
		return centered(width, height, errorStyle.Render(msg))
	}

	header := s.renderHeader(width)
	footer := s.renderFooter(width)
	bodyHeight := height - lipgloss.Height(header) - lipgloss.Height(footer)

	var body string
	if s.ready() {
		body = s.renderPanes(width, bodyHeight)
	} else {
		body = s.renderSetup(width, bodyHeight)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (s *detailScreen) renderHeader(width int) string {
	sess := s.session
	status := strings.ToUpper(sess.Status.String())
	statusStyle := metaStyle
	if sess.IsReady() {
		statusStyle = noticeStyle
	}
	top := metaStyle.Render("< Back (esc)")
	gap := width - lipgloss.Width(top) - len(status) - 2
	top += strings.Repeat(" ", max(gap, 1)) + statusStyle.Bold(true).Render(status)

	meta := fmt.Sprintf("Owner: %s   Created: %s   %s",
		sess.Owner.Name(), sess.CreatedAt.Local().Format("2006-01-02"), visibilityBadge(sess.Visibility))
	if s.err != "" {
		meta += "   " + errorStyle.Render(s.err)
	}
	return top + "\n" + headerStyle.Render(truncate(sess.Title, width)) + "\n" + metaStyle.Render(meta)
}

func (s *detailScreen) renderFooter(width int) string {
	switch {
	case s.kind != inputNone:
		label := "Comment"
		switch s.kind {
		case inputReply:
			label = "Reply"
		case inputUpload:
			label = "ZIP file"
		}
		line := headerStyle.Render(label+": ") + s.input.View()
		if s.posting {
			line += " " + s.spinner.View()
		}
		if s.notice != "" {
			line += "  " + errorStyle.Render(s.notice)
		}
		return line
	case s.notice != "":
		return errorStyle.Render(s.notice)
	}
	return ""
}

func (s *detailScreen) renderSetup(width, height int) string {
	lines := []string{
		titleStyle.Render("Setup Session"),
		metaStyle.Render("Upload your source code (ZIP) to start reviewing."),
		"",
	}
	if !s.isOwner() {
		lines = append(lines, metaStyle.Render("Waiting for owner to upload code..."))
		return centered(width, height, lines...)
	}

	st := s.tracker.State()
	s.bar.Width = min(60, width-10)
	switch st.Phase {
	case upload.Idle:
		lines = append(lines, helpKeyStyle.Render("u")+" choose a ZIP file to upload")
	case upload.Uploading:
		lines = append(lines, st.File, s.spinner.View()+" "+st.Message)
	case upload.Processing:
		lines = append(lines, st.File, s.bar.ViewAs(float64(st.Percent)/100), metaStyle.Render(st.Message))
	case upload.Done:
		lines = append(lines, s.bar.ViewAs(1), noticeStyle.Render(st.Message))
	case upload.Failed:
		lines = append(lines,
			errorStyle.Render(st.Err),
			"",
			helpKeyStyle.Render("u")+" try again",
		)
	}
	return centered(width, height, lines...)
}

func (s *detailScreen) renderPanes(width, height int) string {
	treeWidth := min(32, width/4)
	commentWidth := min(44, width/3)
	codeWidth := width - treeWidth - commentWidth

	return lipgloss.JoinHorizontal(lipgloss.Top,
		s.renderTree(treeWidth, height),
		s.renderCode(codeWidth, height),
		s.renderComments(commentWidth, height),
	)
}

func (s *detailScreen) paneStyle(p pane) lipgloss.Style {
	if s.focus == p {
		return paneFocusedStyle
	}
	return paneStyle
}

func (s *detailScreen) renderTree(width, height int) string {
	inner := height - 2
	var b strings.Builder
	b.WriteString(metaStyle.Bold(true).Render("FILES"))
	b.WriteString("\n")

	switch {
	case s.treeErr != "":
		b.WriteString(errorStyle.Render(s.treeErr))
	case s.roots == nil:
		b.WriteString(s.spinner.View())
	case len(s.rows) == 0:
		b.WriteString(metaStyle.Render("No files"))
	default:
		visible := max(inner-1, 1)
		start := 0
		if s.treeCursor >= visible {
			start = s.treeCursor - visible + 1
		}
		end := min(start+visible, len(s.rows))
		for i := start; i < end; i++ {
			row := s.rows[i]
			icon := "  "
			style := itemStyle
			if row.Node.IsDirectory {
				icon = "▸ "
				if s.expanded[row.Node.Path] {
					icon = "▾ "
				}
				style = dirStyle
			}
			text := strings.Repeat("  ", row.Depth) + icon + row.Node.Name
			text = truncate(text, width-4)
			switch {
			case i == s.treeCursor && s.focus == paneTree:
				text = itemSelectedStyle.Render(text)
			case row.Node.Path == s.file:
				text = style.Bold(true).Render(text)
			default:
				text = style.Render(text)
			}
			b.WriteString(text)
			if i < end-1 {
				b.WriteString("\n")
			}
		}
	}
	return s.paneStyle(paneTree).Width(width - 2).Height(inner).MaxHeight(height).Render(b.String())
}

func (s *detailScreen) renderCode(width, height int) string {
	inner := height - 2
	innerWidth := width - 4
	s.codeHeight = max(inner-1, 1)

	var b strings.Builder
	switch {
	case s.file == "":
		b.WriteString(metaStyle.Render("Select a file to view its content"))
		return s.paneStyle(paneCode).Width(width - 2).Height(inner).Render(b.String())
	default:
		name := s.file
		if n := tree.Find(s.roots, s.file); n != nil && n.Size > 0 {
			name += metaStyle.Render("  " + humanize.Bytes(uint64(n.Size)))
		}
		b.WriteString(headerStyle.Render(name))
		b.WriteString("\n")
	}

	switch {
	case s.fileLoading:
		b.WriteString(s.spinner.View())
	case s.fileErr != "":
		b.WriteString(errorStyle.Render(s.fileErr))
	default:
		end := min(s.offset+s.codeHeight, len(s.lines))
		for i := s.offset; i < end; i++ {
			b.WriteString(s.renderLine(i+1, s.lines[i], innerWidth))
			if i < end-1 {
				b.WriteString("\n")
			}
		}
	}
	return s.paneStyle(paneCode).Width(width - 2).Height(inner).MaxHeight(height).Render(b.String())
}

// renderLine draws one numbered source line: a comment marker, the line
// number and the highlighted tokens.
func (s *detailScreen) renderLine(n int, line highlight.Line, width int) string {
	mark := " "
	if c := s.counts[n]; c > 0 {
		mark = gutterMarkStyle.Render("●")
	}
	num := lineNumberStyle.Render(fmt.Sprintf("%d", n))
	if n == s.active {
		num = activeLineStyle.Inherit(lineNumberStyle).Foreground(colorYellow).Render(fmt.Sprintf("%d", n))
		mark = helpKeyStyle.Render("▶")
		if s.counts[n] > 0 {
			mark = gutterMarkStyle.Render("▶")
		}
	}
	return mark + num + " " + renderTokens(line, width-8)
}

// renderTokens colors line's tokens and cuts the line at width cells.
func renderTokens(line highlight.Line, width int) string {
	var b strings.Builder
	left := width
	for _, tok := range line.Tokens {
		if left <= 0 {
			break
		}
		text := strings.ReplaceAll(tok.Text, "\t", "    ")
		r := []rune(text)
		if len(r) > left {
			text = string(r[:max(left-1, 0)]) + "…"
			r = r[:left]
		}
		left -= len(r)
		if tok.Color != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(text))
		} else {
			b.WriteString(text)
		}
	}
	return b.String()
}

func (s *detailScreen) renderComments(width, height int) string {
	inner := height - 2
	innerWidth := width - 4
	var b strings.Builder
	b.WriteString(metaStyle.Bold(true).Render("COMMENTS"))
	b.WriteString("\n")

	switch {
	case s.file == "":
		b.WriteString(metaStyle.Render("Select a file to view comments"))
	case len(s.threads) == 0:
		b.WriteString(metaStyle.Render("No comments on this file yet."))
		if len(s.lines) > 0 {
			b.WriteString("\n" + metaStyle.Render(fmt.Sprintf("Press c to comment on line %d.", s.active)))
		}
	default:
		for i, t := range s.threads {
			b.WriteString(s.renderThread(i, t, innerWidth))
			b.WriteString("\n")
		}
	}
	return s.paneStyle(paneComments).Width(width - 2).Height(inner).MaxHeight(height).Render(b.String())
}

func (s *detailScreen) renderThread(i int, t thread.Thread, width int) string {
	var b strings.Builder
	anchor := fmt.Sprintf("L%d", t.Root.StartLine)
	if t.Root.EndLine > t.Root.StartLine {
		anchor = fmt.Sprintf("L%d-%d", t.Root.StartLine, t.Root.EndLine)
	}
	head := anchor + " " + authorStyle.Render(t.Root.Author.Name())
	if t.Root.Resolved {
		head += " " + resolvedStyle.Render("✓ resolved")
	}
	if i == s.threadCursor && s.focus == paneComments {
		head = "> " + head
	} else {
		head = "  " + head
	}
	if t.Root.StartLine <= s.active && s.active <= max(t.Root.EndLine, t.Root.StartLine) {
		head = gutterMarkStyle.Render("●") + head
	} else {
		head = " " + head
	}
	b.WriteString(head + "\n")
	b.WriteString(lipgloss.NewStyle().Width(width - 3).PaddingLeft(3).Render(t.Root.Content))
	for _, r := range t.Replies {
		b.WriteString("\n")
		line := "↳ " + authorStyle.Render(r.Author.Name()) + " " + metaStyle.Render(humanize.Time(r.CreatedAt))
		b.WriteString(replyStyle.PaddingLeft(3).Render(line))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width - 5).PaddingLeft(5).Render(r.Content))
	}
	return b.String()
}

func (s *detailScreen) Help() []key.Binding {
	switch {
	case s.kind != inputNone:
		return []key.Binding{submit, dismiss}
	case s.session != nil && !s.ready() && s.isOwner():
		return []key.Binding{keys.Upload, keys.Refresh, keys.Back}
	case !s.ready():
		return []key.Binding{keys.Refresh, keys.Back}
	}
	switch s.focus {
	case paneTree:
		return []key.Binding{keys.Pane, keys.Open, keys.Comment, keys.Back}
	case paneCode:
		return []key.Binding{keys.Pane, keys.Up, keys.Down, keys.Comment, keys.Back}
	default:
		return []key.Binding{keys.Pane, keys.Reply, keys.Resolve, keys.Comment, keys.Back}
	}
}

func (s *detailScreen) Capturing() bool { return s.kind != inputNone }

// Close tears down any open upload stream and drops outstanding results.
func (s *detailScreen) Close() {
	s.tracker.Close()
	s.tickets.Invalidate()
}
