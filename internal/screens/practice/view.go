package practice

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/ui/components"
	"github.com/abhisek/satprep/internal/ui/theme"
)

func (s *PracticeScreen) View(width, height int) string {
	switch {
	case s.errMsg != "":
		return renderError(width, s.errMsg)
	case s.confirmQuit:
		return renderQuitConfirm(width)
	case s.sig.Question == nil:
		return s.renderLoading(width)
	}
	return s.renderQuestion(width)
}

// renderQuestion renders the active question with its feedback.
func (s *PracticeScreen) renderQuestion(width int) string {
	sig := s.sig
	q := sig.Question
	body := lipgloss.NewStyle().Width(min(width-8, 90)).Foreground(theme.Text)

	var b strings.Builder

	infoLeft := lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true).
		Render(fmt.Sprintf("  Batch %d · Question %d of %d", sig.Batch, sig.Step+1, sig.BatchLen))
	infoRight := lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render(fmt.Sprintf("%s %d/%d  %s %s",
			lipgloss.NewStyle().Foreground(theme.Success).Render("✓"),
			sig.Correct, sig.Answered,
			lipgloss.NewStyle().Foreground(theme.Accent).Render("⏱"),
			session.FormatElapsed(q.Elapsed),
		))
	infoLine := infoLeft
	if pad := width - lipgloss.Width(infoLeft) - lipgloss.Width(infoRight) - 4; pad > 0 {
		infoLine += strings.Repeat(" ", pad) + infoRight
	}
	b.WriteString(infoLine)
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0))))
	b.WriteString("\n")

	meta := fmt.Sprintf("  %s · %s", q.SkillCd, difficultyName(q.Difficulty))
	if q.Mode == session.ModeReview {
		meta += "  " + theme.Notice.Render("REVIEW")
	}
	b.WriteString(theme.Dim.Render(meta))
	b.WriteString("\n\n")

	if q.Stimulus != "" {
		b.WriteString(indent(body.Render(questionbank.PlainText(q.Stimulus))))
		b.WriteString("\n\n")
	}
	b.WriteString(indent(body.Bold(true).Render(questionbank.PlainText(q.Stem))))
	b.WriteString("\n\n")

	if q.Type == questionbank.TypeFreeResponse {
		b.WriteString("  Answer: " + s.input.View())
		b.WriteString("\n")
	} else {
		b.WriteString(s.choices.View(width))
	}

	if q.Checked {
		b.WriteString("\n")
		b.WriteString(renderFeedback(q))
		if q.Rationale != "" {
			b.WriteString("\n")
			b.WriteString(indent(theme.Dim.Width(min(width-8, 90)).Render(questionbank.PlainText(q.Rationale))))
			b.WriteString("\n")
		}
		b.WriteString(s.renderExplanation(width))
	}

	if sig.Notice != "" {
		b.WriteString("\n  ")
		b.WriteString(theme.Notice.Render(sig.Notice))
		b.WriteString("\n")
	}
	if sig.Phase == session.PhaseLoadingBatch {
		b.WriteString("\n  ")
		b.WriteString(components.NewCountBar("Loading", sig.Progress.Attempted, sig.Progress.Total, min(width-4, 60)).View())
		b.WriteString("\n")
	}
	return b.String()
}

func renderFeedback(q *session.QuestionView) string {
	if q.IsCorrect {
		return "  " + theme.Correct.Render("Correct!") + "\n"
	}
	return "  " + theme.Incorrect.Render("Not quite.") + "  " +
		theme.Dim.Render("Correct answer: "+strings.Join(q.CorrectAnswer, " or ")) + "\n"
}

func (s *PracticeScreen) renderExplanation(width int) string {
	switch {
	case s.explaining:
		return "\n  " + theme.Hint.Render("Asking the tutor...") + "\n"
	case s.explainErr != "":
		return "\n  " + theme.Notice.Render(s.explainErr) + "\n"
	case s.explanation == nil:
		return ""
	}

	e := s.explanation
	wrap := lipgloss.NewStyle().Width(min(width-8, 90)).Foreground(theme.Text)
	var b strings.Builder
	b.WriteString("\n  ")
	b.WriteString(theme.Selected.Render("Key concept: " + e.KeyConcept))
	b.WriteString("\n")
	b.WriteString(indent(wrap.Render(e.Explanation)))
	b.WriteString("\n")
	for i, step := range e.Steps {
		b.WriteString(indent(wrap.Render(fmt.Sprintf("%d. %s", i+1, step))))
		b.WriteString("\n")
	}
	if e.Mistake != "" {
		b.WriteString(indent(theme.Hint.Width(min(width-8, 90)).Render("Watch out: " + e.Mistake)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderLoading renders the hydration progress of the first batch.
func (s *PracticeScreen) renderLoading(width int) string {
	var b strings.Builder
	b.WriteString("\n\n\n")
	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.TextDim).
		Render("Preparing your session..."))
	b.WriteString("\n\n")
	if p := s.sig.Progress; p.Total > 0 {
		bar := components.NewCountBar("Questions", p.Attempted, p.Total, min(width-8, 60)).View()
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, bar))
		b.WriteString("\n")
	}
	return b.String()
}

// renderQuitConfirm renders the quit confirmation dialog.
func renderQuitConfirm(width int) string {
	center := lipgloss.NewStyle().Width(width).Align(lipgloss.Center)

	var b strings.Builder
	b.WriteString("\n\n\n")
	b.WriteString(center.Foreground(theme.Text).Bold(true).Render("End session early?"))
	b.WriteString("\n")
	b.WriteString(center.Foreground(theme.TextDim).Render("Answered questions stay in your history."))
	b.WriteString("\n\n")
	b.WriteString(center.Foreground(theme.Success).Render("[Y] Yes, end session"))
	b.WriteString("\n")
	b.WriteString(center.Foreground(theme.Primary).Render("[N] No, keep going"))
	return b.String()
}

// renderError renders an error message.
func renderError(width int, errMsg string) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Error).
		Render(fmt.Sprintf("\n\n\n%s\n\nPress any key to go back.", errMsg))
}

func difficultyName(code string) string {
	switch code {
	case "E":
		return "Easy"
	case "M":
		return "Medium"
	case "H":
		return "Hard"
	}
	return code
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
