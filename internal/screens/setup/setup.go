// Package setup is the form that collects practice selections.
package setup

import (
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/router"
	"github.com/abhisek/satprep/internal/screen"
	"github.com/abhisek/satprep/internal/screens/practice"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/ui/components"
	"github.com/abhisek/satprep/internal/ui/layout"
	"github.com/abhisek/satprep/internal/ui/theme"
)

type field int

const (
	fieldAssessment field = iota
	fieldSubject
	fieldDomains
	fieldSkills
	fieldDifficulty
	fieldRandomize
	fieldQuestionIDs
	fieldCount
)

var difficulties = []string{"E", "M", "H"}

// SetupScreen collects the selections of a new practice session.
type SetupScreen struct {
	env   screen.Env
	focus field

	assessment  int
	subject     int
	domains     components.TextInput
	skills      components.TextInput
	questionIDs components.TextInput
	difficulty  map[string]bool
	randomize   bool

	errMsg string
}

var _ screen.Screen = (*SetupScreen)(nil)
var _ screen.KeyHintProvider = (*SetupScreen)(nil)

// New creates the form, prefilled from prev when given.
func New(env screen.Env, prev *session.Selections) *SetupScreen {
	s := &SetupScreen{
		env:         env,
		domains:     components.NewTextInput("H, P", false, 60),
		skills:      components.NewTextInput("H.A.1, H.B.2", false, 120),
		questionIDs: components.NewTextInput("optional", false, 200),
		difficulty:  map[string]bool{"E": true, "M": true, "H": true},
	}
	if prev != nil {
		s.assessment = max(slices.Index(questionbank.Assessments(), prev.Assessment), 0)
		s.subject = max(slices.Index(questionbank.Subjects(), prev.Subject), 0)
		s.domains.SetValue(strings.Join(prev.Domains, ", "))
		s.skills.SetValue(strings.Join(prev.Skills, ", "))
		s.questionIDs.SetValue(strings.Join(prev.QuestionIDs, ", "))
		if len(prev.Difficulties) > 0 {
			s.difficulty = map[string]bool{}
			for _, d := range prev.Difficulties {
				s.difficulty[d] = true
			}
		}
		s.randomize = prev.Randomize
	}
	s.setFocus(fieldAssessment)
	return s
}

func (s *SetupScreen) Init() tea.Cmd {
	return nil
}

func (s *SetupScreen) Title() string {
	return "New Practice"
}

func (s *SetupScreen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{{Key: "↑/↓", Description: "Field"}}
	switch s.focus {
	case fieldAssessment, fieldSubject:
		hints = append(hints, layout.KeyHint{Key: "←/→", Description: "Change"})
	case fieldDifficulty:
		hints = append(hints, layout.KeyHint{Key: "E/M/H", Description: "Toggle"})
	case fieldRandomize:
		hints = append(hints, layout.KeyHint{Key: "Space", Description: "Toggle"})
	}
	return append(hints,
		layout.KeyHint{Key: "Enter", Description: "Start"},
		layout.KeyHint{Key: "Esc", Description: "Back"},
	)
}

// Selections returns what the form currently describes.
func (s *SetupScreen) Selections() session.Selections {
	sel := session.Selections{
		Assessment:  questionbank.Assessments()[s.assessment],
		Subject:     questionbank.Subjects()[s.subject],
		Domains:     splitList(s.domains.Value()),
		Skills:      splitList(s.skills.Value()),
		Randomize:   s.randomize,
		QuestionIDs: splitList(s.questionIDs.Value()),
	}
	for _, d := range difficulties {
		if s.difficulty[d] {
			sel.Difficulties = append(sel.Difficulties, d)
		}
	}
	for i, d := range sel.Domains {
		sel.Domains[i] = strings.ToUpper(d)
	}
	return sel
}

func (s *SetupScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}

	switch key := kmsg.String(); key {
	case "esc":
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	case "enter":
		return s, s.submit()
	case "down", "tab":
		s.setFocus((s.focus + 1) % fieldCount)
		return s, nil
	case "up", "shift+tab":
		s.setFocus((s.focus + fieldCount - 1) % fieldCount)
		return s, nil
	default:
		s.errMsg = ""
		return s, s.edit(kmsg)
	}
}

func (s *SetupScreen) edit(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	var cmd tea.Cmd

	switch s.focus {
	case fieldAssessment:
		s.assessment = cycle(s.assessment, len(questionbank.Assessments()), key)
	case fieldSubject:
		s.subject = cycle(s.subject, len(questionbank.Subjects()), key)
	case fieldDomains:
		s.domains, cmd = s.domains.Update(msg)
	case fieldSkills:
		s.skills, cmd = s.skills.Update(msg)
	case fieldQuestionIDs:
		s.questionIDs, cmd = s.questionIDs.Update(msg)
	case fieldDifficulty:
		if d := strings.ToUpper(key); slices.Contains(difficulties, d) {
			s.difficulty[d] = !s.difficulty[d]
		}
	case fieldRandomize:
		if key == "space" || key == " " || key == "left" || key == "right" {
			s.randomize = !s.randomize
		}
	}
	return cmd
}

// submit validates the form and replaces it with the practice screen.
func (s *SetupScreen) submit() tea.Cmd {
	sel := s.Selections()
	if err := sel.Validate(); err != nil {
		s.errMsg = err.Error()
		return nil
	}
	env := s.env
	return func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: practice.New(env, sel)}
	}
}

func (s *SetupScreen) setFocus(f field) {
	s.focus = f
	for _, in := range []struct {
		f     field
		input *components.TextInput
	}{
		{fieldDomains, &s.domains},
		{fieldSkills, &s.skills},
		{fieldQuestionIDs, &s.questionIDs},
	} {
		if in.f == f {
			in.input.Model.Focus()
		} else {
			in.input.Model.Blur()
		}
	}
}

func (s *SetupScreen) View(width, height int) string {
	cw := min(max(width-8, 40), 80)
	var rows []string

	row := func(f field, label, value string) {
		marker := "  "
		style := theme.Unselected
		if s.focus == f {
			marker = "▸ "
			style = theme.Selected
		}
		rows = append(rows, style.Render(marker+padRight(label, 14))+value)
	}

	row(fieldAssessment, "Assessment", choice(questionbank.Assessments()[s.assessment]))
	row(fieldSubject, "Subject", choice(questionbank.Subjects()[s.subject]))
	row(fieldDomains, "Domains", s.domains.View())
	row(fieldSkills, "Skills", s.skills.View())

	var toggles []string
	for _, d := range difficulties {
		toggles = append(toggles, toggle(d, s.difficulty[d]))
	}
	row(fieldDifficulty, "Difficulty", strings.Join(toggles, " "))
	row(fieldRandomize, "Randomize", toggle("on", s.randomize))
	row(fieldQuestionIDs, "Question IDs", s.questionIDs.View())

	var b strings.Builder
	b.WriteString(theme.Title.Width(cw).Render("New practice session"))
	b.WriteString("\n")
	b.WriteString(theme.Subtitle.Width(cw).Render("Comma-separate domains, skills and question ids."))
	b.WriteString("\n\n")
	b.WriteString(theme.Card.Width(cw).Render(strings.Join(rows, "\n\n")))
	if s.errMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Width(cw).Align(lipgloss.Center).
			Render(theme.Incorrect.Render(s.errMsg)))
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, b.String())
}

func choice(v string) string {
	return theme.Dim.Render("◂ ") + theme.Body.Render(v) + theme.Dim.Render(" ▸")
}

func toggle(label string, on bool) string {
	if on {
		return theme.Correct.Render("[x] " + label)
	}
	return theme.Dim.Render("[ ] " + label)
}

func cycle(i, n int, key string) int {
	switch key {
	case "left", "h":
		return (i + n - 1) % n
	case "right", "l", "space", " ":
		return (i + 1) % n
	}
	return i
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

// splitList splits a comma or space separated list, dropping blanks.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
