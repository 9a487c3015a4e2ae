// Package tui is a terminal player for a story session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	"github.com/louisbranch/storyengine/internal/platform/i18n/catalog"
	"github.com/louisbranch/storyengine/internal/services/story/domain/gamestate"
	"github.com/louisbranch/storyengine/internal/services/story/domain/graph"
	"github.com/louisbranch/storyengine/internal/services/story/domain/play"
	"golang.org/x/text/message"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	maxOptionKey  = 9
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	contentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			PaddingLeft(1)

	lockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Faint(true).
			PaddingLeft(1)

	endingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5F5F87")).
			Bold(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)
)

// Model is the bubbletea model for one play session. The session is only
// touched from commands; View renders the page and state snapshots they
// return.
type Model struct {
	ctx      context.Context
	session  *play.Session
	locale   string
	printer  *message.Printer
	viewport viewport.Model
	page     play.Page
	state    gamestate.State
	started  bool
	busy     bool
	err      error
	width    int
	height   int
}

type pageMsg struct {
	page  play.Page
	state gamestate.State
	err   error
}

// NewModel wraps session. The session is started from chapter 1 by Init.
func NewModel(ctx context.Context, session *play.Session, locale string) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	m := Model{
		ctx:     ctx,
		session: session,
		locale:  locale,
		printer: catalog.Default().Printer(locale),
		width:   defaultWidth,
		height:  defaultHeight,
	}
	m.viewport = viewport.New(m.logWidth(), m.logHeight())
	return m
}

func (m Model) Init() tea.Cmd {
	return m.restart()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyRunes:
			key := string(msg.Runes)
			switch {
			case key == "q":
				return m, tea.Quit
			case key == "r":
				if m.busy {
					return m, nil
				}
				m.busy = true
				return m, m.restart()
			case len(key) == 1 && key[0] >= '1' && key[0] <= '0'+maxOptionKey:
				if m.busy || !m.started {
					return m, nil
				}
				m.busy = true
				return m, m.choose(int(key[0] - '0'))
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.logWidth()
		m.viewport.Height = m.logHeight()
		if m.started {
			m.viewport.SetContent(m.renderPage())
		}
		return m, nil

	case pageMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.page = msg.page
		m.state = msg.state
		m.started = true
		m.viewport.SetContent(m.renderPage())
		m.viewport.GotoTop()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var body string
	if m.started {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.viewport.View(), m.renderState())
	}

	parts := []string{body}
	if m.err != nil {
		parts = append(parts, "\n"+errorStyle.Render(apperrors.Localize(m.err, m.locale)))
	}
	parts = append(parts, "\n"+helpStyle.Render(m.printer.Sprintf("play.help")))
	return "\n" + lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m Model) renderPage() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.printer.Sprintf("play.chapter", m.page.ChapterID, m.page.Title)))
	b.WriteString("\n\n")
	b.WriteString(contentStyle.Width(m.viewport.Width).Render(strings.TrimSpace(m.page.Content)))
	b.WriteString("\n\n")

	if m.page.Ending {
		b.WriteString(endingStyle.Render(m.printer.Sprintf("play.ending")))
		return b.String()
	}
	b.WriteString(m.printer.Sprintf("play.options"))
	b.WriteString("\n")
	for _, opt := range m.page.Options {
		line := fmt.Sprintf("%d. %s", opt.Index, opt.Text)
		if opt.Advisory {
			b.WriteString(optionStyle.Render(line))
		} else {
			b.WriteString(lockedStyle.Render(line + " " + m.printer.Sprintf("play.locked", opt.Condition)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderState() string {
	state := m.state
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.printer.Sprintf("play.state")))
	b.WriteString("\n")
	names := state.Names()
	if len(names) == 0 {
		b.WriteString(m.printer.Sprintf("play.state_empty"))
	}
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\n", name, state[name].String())
	}
	return stateStyle.Width(m.width - m.logWidth() - 3).Height(m.viewport.Height).Render(b.String())
}

func (m Model) logWidth() int {
	return int(float64(m.width) * 0.75)
}

func (m Model) logHeight() int {
	if m.height <= 6 {
		return 1
	}
	return m.height - 6
}

func (m Model) restart() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		if err := session.Start(ctx, graph.StartChapterID); err != nil {
			return pageMsg{err: err}
		}
		page, err := session.Page()
		if err != nil {
			return pageMsg{err: err}
		}
		return pageMsg{page: page, state: session.State()}
	}
}

func (m Model) choose(index int) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		page, err := session.Choose(ctx, index)
		if err != nil {
			return pageMsg{err: err}
		}
		return pageMsg{page: page, state: session.State()}
	}
}

// Run plays session in the terminal until the player quits.
func Run(ctx context.Context, session *play.Session, locale string, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(ctx, session, locale), opts...)
	_, err := p.Run()
	return err
}
