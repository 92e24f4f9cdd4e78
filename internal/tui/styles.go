package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorRed       = lipgloss.Color("#ff5555")
	colorGreen     = lipgloss.Color("#50fa7b")
	colorYellow    = lipgloss.Color("#f1fa8c")
	colorBlue      = lipgloss.Color("#8be9fd")
	colorPurple    = lipgloss.Color("#bd93f9")
	colorPink      = lipgloss.Color("#ff79c6")
	colorDim       = lipgloss.Color("#6272a4")
	colorBgLight   = lipgloss.Color("#343746")
	colorFg        = lipgloss.Color("#f8f8f2")
	colorOrange    = lipgloss.Color("#ffb86c")
	colorBorder    = lipgloss.Color("#44475a")
	colorHighlight = lipgloss.Color("#44475a")
)

// Style definitions.
var (
	// Panes
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	paneFocusedStyle = paneStyle.
				BorderForeground(colorPurple)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			Padding(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	// Lists
	itemStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	itemSelectedStyle = lipgloss.NewStyle().
				Foreground(colorFg).
				Background(colorHighlight).
				Bold(true)

	dirStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	metaStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	// Visibility badges
	visPrivateStyle = lipgloss.NewStyle().Foreground(colorRed)
	visLinkStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	visPublicStyle  = lipgloss.NewStyle().Foreground(colorGreen)

	// Code view
	lineNumberStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(5).
			Align(lipgloss.Right)

	activeLineStyle = lipgloss.NewStyle().
			Background(colorBgLight)

	gutterMarkStyle = lipgloss.NewStyle().
			Foreground(colorOrange).
			Bold(true)

	// Comments
	authorStyle = lipgloss.NewStyle().
			Foreground(colorPink).
			Bold(true)

	resolvedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	replyStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	// Messages
	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorOrange)

	// Status bar
	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBgLight).
			Padding(0, 1)

	statusKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Background(colorBgLight).
			Bold(true)

	// Help bar
	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)
