// Package statistics shows accuracy and pace aggregated over every
// checked answer.
package statistics

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/satprep/internal/router"
	"github.com/abhisek/satprep/internal/screen"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/stats"
	"github.com/abhisek/satprep/internal/store"
	"github.com/abhisek/satprep/internal/ui/components"
	"github.com/abhisek/satprep/internal/ui/layout"
	"github.com/abhisek/satprep/internal/ui/theme"
)

type statsLoadedMsg struct {
	Summary stats.Summary
	Err     error
}

// StatisticsScreen renders the aggregate statistics, by domain or by skill.
type StatisticsScreen struct {
	env     screen.Env
	summary stats.Summary
	bySkill bool
	loaded  bool
	errMsg  string
}

var _ screen.Screen = (*StatisticsScreen)(nil)
var _ screen.KeyHintProvider = (*StatisticsScreen)(nil)

// New creates a new StatisticsScreen.
func New(env screen.Env) *StatisticsScreen {
	return &StatisticsScreen{env: env}
}

func (s *StatisticsScreen) Init() tea.Cmd {
	repo := s.env.Stats
	return func() tea.Msg {
		recs, err := stats.Query(context.Background(), repo, store.QueryOpts{})
		if err != nil {
			return statsLoadedMsg{Err: err}
		}
		return statsLoadedMsg{Summary: stats.Summarize(recs)}
	}
}

func (s *StatisticsScreen) Title() string {
	return "Statistics"
}

func (s *StatisticsScreen) KeyHints() []layout.KeyHint {
	view := "By skill"
	if s.bySkill {
		view = "By domain"
	}
	return []layout.KeyHint{
		{Key: "Tab", Description: view},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *StatisticsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case statsLoadedMsg:
		s.loaded = true
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.summary = msg.Summary
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "tab", "left", "right":
			s.bySkill = !s.bySkill
		}
	}
	return s, nil
}

func (s *StatisticsScreen) View(width, height int) string {
	center := lipgloss.NewStyle().Width(width).Align(lipgloss.Center)
	switch {
	case s.errMsg != "":
		return center.Foreground(theme.Error).Render("\n\nError: " + s.errMsg)
	case !s.loaded:
		return center.Foreground(theme.TextDim).Render("\n\n  Loading statistics...")
	case s.summary.Overall.Attempted == 0:
		return center.Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No answers recorded yet.")
	}

	o := s.summary.Overall
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(center.Foreground(theme.Primary).Bold(true).Render(
		fmt.Sprintf("%d answered · %d correct · %.0f%% · avg %s",
			o.Attempted, o.Correct, o.Accuracy()*100, session.FormatElapsed(o.AverageTime()))))
	b.WriteString("\n\n")

	buckets, heading := s.summary.ByDomain, "Domain"
	if s.bySkill {
		buckets, heading = s.summary.BySkill, "Skill"
	}
	barWidth := min(width-44, 40)
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		theme.Dim.Render(fmt.Sprintf("%-10s %-9s %-7s %s", heading, "Score", "Avg", "Accuracy"))))
	b.WriteString("\n")
	for _, bk := range buckets {
		bar := components.NewProgressBar("", bk.Accuracy(), true, max(barWidth, 10)).View()
		line := fmt.Sprintf("%-10s %-9s %-7s ",
			bk.Key,
			fmt.Sprintf("%d/%d", bk.Correct, bk.Attempted),
			session.FormatElapsed(bk.AverageTime()))
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, theme.Body.Render(line)+bar))
		b.WriteString("\n")
	}
	return b.String()
}
