package summary

import (
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/satprep/internal/router"
	"github.com/abhisek/satprep/internal/screen"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/ui/layout"
	"github.com/abhisek/satprep/internal/ui/theme"
)

// SummaryScreen displays the session summary.
type SummaryScreen struct {
	summary *session.SessionSummary
	notice  string
}

var _ screen.Screen = (*SummaryScreen)(nil)
var _ screen.KeyHintProvider = (*SummaryScreen)(nil)

// New creates a new SummaryScreen. notice, when set, is shown under the
// title.
func New(summary *session.SessionSummary, notice string) *SummaryScreen {
	return &SummaryScreen{summary: summary, notice: notice}
}

func (s *SummaryScreen) Init() tea.Cmd {
	return nil
}

func (s *SummaryScreen) Title() string {
	return "Session Summary"
}

func (s *SummaryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Continue"},
		{Key: "Esc", Description: "Home"},
	}
}

func (s *SummaryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc":
			return s, func() tea.Msg { return router.PopToRootMsg{} }
		}
	}
	return s, nil
}

func (s *SummaryScreen) View(width, height int) string {
	sum := s.summary
	if sum == nil {
		return ""
	}
	center := lipgloss.NewStyle().Width(width).Align(lipgloss.Center)

	var b strings.Builder

	title := "Session complete!"
	if sum.Status == session.StatusAbandoned {
		title = "Session ended"
	}
	b.WriteString(center.Foreground(theme.Primary).Bold(true).Render(title))
	b.WriteString("\n")
	if s.notice != "" {
		b.WriteString(center.Inherit(theme.Notice).Render(s.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(center.Foreground(theme.TextDim).Render(
		fmt.Sprintf("Duration: %s    Avg per question: %s",
			session.FormatElapsed(sum.Duration), session.FormatElapsed(sum.AverageTime))))
	b.WriteString("\n\n")

	statsLine := fmt.Sprintf("Answered: %d        Correct: %d        Accuracy: %.0f%%",
		sum.Answered, sum.TotalCorrect, sum.Accuracy*100)
	b.WriteString(center.Foreground(theme.Text).Render(statsLine))
	b.WriteString("\n\n")

	if len(sum.SkillResults) == 0 {
		b.WriteString(center.Inherit(theme.Hint).Render("No questions answered."))
		return b.String()
	}

	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(
		strings.Repeat("─", min(width-8, 60)))
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.TextDim).Render("Skills")))
	b.WriteString("\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider))
	b.WriteString("\n\n")

	b.WriteString(RenderSkillResults(width, sum.SkillResults))
	return b.String()
}

// RenderSkillResults renders one centered line per skill.
func RenderSkillResults(width int, results []session.SkillResult) string {
	var b strings.Builder
	for _, sr := range results {
		if sr.Attempted == 0 {
			continue
		}
		avg := sr.TotalTime / time.Duration(sr.Attempted)
		line := fmt.Sprintf("  %-10s %d/%d correct   %3.0f%%   avg %s",
			sr.SkillCd, sr.Correct, sr.Attempted, sr.Accuracy()*100, session.FormatElapsed(avg))

		style := lipgloss.NewStyle().Foreground(theme.Text)
		switch {
		case sr.Accuracy() >= 0.8:
			style = style.Foreground(theme.Success)
		case sr.Accuracy() < 0.5:
			style = style.Foreground(theme.Error)
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(line)))
		b.WriteString("\n")
	}
	return b.String()
}
