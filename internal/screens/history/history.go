// Package history lists finished practice sessions.
package history

import (
	"context"
	"fmt"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/satprep/internal/router"
	"github.com/abhisek/satprep/internal/screen"
	"github.com/abhisek/satprep/internal/screens/practice"
	"github.com/abhisek/satprep/internal/screens/summary"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/ui/layout"
	"github.com/abhisek/satprep/internal/ui/theme"
)

type historyLoadedMsg struct {
	Sessions []session.Session
	Err      error
}

// HistoryScreen displays finished sessions, most recent first.
type HistoryScreen struct {
	env      screen.Env
	sessions []session.Session
	selected int
	expanded map[int]bool
	loaded   bool
	errMsg   string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(env screen.Env) *HistoryScreen {
	return &HistoryScreen{
		env:      env,
		expanded: make(map[int]bool),
	}
}

func (s *HistoryScreen) Init() tea.Cmd {
	p := s.env.Persister
	return func() tea.Msg {
		sessions, err := p.ListHistory(context.Background())
		if err != nil {
			return historyLoadedMsg{Err: err}
		}
		slices.Reverse(sessions)
		return historyLoadedMsg{Sessions: sessions}
	}
}

func (s *HistoryScreen) Title() string {
	return "History"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Details"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "p", Description: "Practice again"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.sessions = msg.Sessions
			s.selected = min(s.selected, max(len(s.sessions)-1, 0))
		}
		s.loaded = true
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
			return s, nil
		case "down", "j":
			if s.selected < len(s.sessions)-1 {
				s.selected++
			}
			return s, nil
		case "enter":
			s.expanded[s.selected] = !s.expanded[s.selected]
			return s, nil
		case "p":
			if s.selected >= len(s.sessions) {
				return s, nil
			}
			env, sel := s.env, s.sessions[s.selected].Selections
			return s, func() tea.Msg {
				return router.PushScreenMsg{Screen: practice.New(env, sel)}
			}
		}
	}
	return s, nil
}

func (s *HistoryScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading history...")
	}
	if len(s.sessions) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No sessions yet. Start practicing!")
	}

	var b strings.Builder
	b.WriteString("\n")

	for i, sess := range s.sessions {
		sum := session.BuildSummary(sess)

		prefix := "  "
		if i == s.selected {
			prefix = "▸ "
		}
		line := fmt.Sprintf("%s%s  %-9s  %s  %2d answered  %3.0f%%",
			prefix,
			sess.StartedAt.Local().Format("Jan 02 15:04"),
			statusLabel(sess.Status),
			session.FormatElapsed(sum.Duration),
			sum.Answered,
			sum.Accuracy*100,
		)

		style := lipgloss.NewStyle().Foreground(theme.Text)
		if i == s.selected {
			style = style.Foreground(theme.Primary).Bold(true)
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(line)))
		b.WriteString("\n")

		if s.expanded[i] {
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
				theme.Dim.Render(sess.Selections.String())))
			b.WriteString("\n")
			if len(sum.SkillResults) == 0 {
				b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
					lipgloss.NewStyle().Foreground(theme.TextDim).Italic(true).
						Render("    No answers this session")))
				b.WriteString("\n")
			} else {
				b.WriteString(summary.RenderSkillResults(width, sum.SkillResults))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func statusLabel(s session.Status) string {
	switch s {
	case session.StatusCompleted:
		return "completed"
	case session.StatusAbandoned:
		return "ended"
	}
	return strings.ToLower(string(s))
}
