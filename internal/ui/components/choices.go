package components

import (
	"fmt"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/ui/theme"
)

// Choices renders the answer options of a multiple choice question. Once
// Locked it shows the chosen key against the accepted keys.
type Choices struct {
	Options []questionbank.AnswerOption
	Cursor  int

	Locked  bool
	Chosen  string
	Correct []string
}

// NewChoices creates a selector with the cursor on selected, if present.
func NewChoices(options []questionbank.AnswerOption, selected string) Choices {
	c := Choices{Options: options}
	for i, o := range options {
		if o.Key == selected {
			c.Cursor = i
		}
	}
	return c
}

// Lock freezes the selector and marks chosen against correct.
func (c *Choices) Lock(chosen string, correct []string) {
	c.Locked = true
	c.Chosen = chosen
	c.Correct = correct
}

// Current returns the key under the cursor.
func (c Choices) Current() string {
	if c.Cursor < 0 || c.Cursor >= len(c.Options) {
		return ""
	}
	return c.Options[c.Cursor].Key
}

// Update moves the cursor. A letter key jumps straight to that option.
func (c Choices) Update(msg tea.Msg) (Choices, bool) {
	if c.Locked {
		return c, false
	}
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, false
	}

	switch key := kmsg.String(); key {
	case "up", "k":
		if c.Cursor > 0 {
			c.Cursor--
			return c, true
		}
	case "down", "j":
		if c.Cursor < len(c.Options)-1 {
			c.Cursor++
			return c, true
		}
	default:
		for i, o := range c.Options {
			if strings.EqualFold(o.Key, key) {
				c.Cursor = i
				return c, true
			}
		}
	}
	return c, false
}

// View renders the options, wrapped to width.
func (c Choices) View(width int) string {
	var b strings.Builder
	wrap := lipgloss.NewStyle().Width(max(width-6, 20))

	for i, o := range c.Options {
		prefix := "  "
		if i == c.Cursor && !c.Locked {
			prefix = "▸ "
		}
		line := wrap.Render(fmt.Sprintf("%s%s)  %s", prefix, o.Key, o.Content))

		var style lipgloss.Style
		switch {
		case c.Locked && slices.Contains(c.Correct, o.Key):
			style = theme.Correct
		case c.Locked && o.Key == c.Chosen:
			style = theme.Incorrect
		case c.Locked:
			style = theme.Dim
		case i == c.Cursor:
			style = theme.Selected
		default:
			style = theme.Unselected
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}
