// Package home is the landing screen: resume, start or review practice.
package home

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/satprep/internal/router"
	"github.com/abhisek/satprep/internal/screen"
	"github.com/abhisek/satprep/internal/screens/history"
	"github.com/abhisek/satprep/internal/screens/practice"
	"github.com/abhisek/satprep/internal/screens/setup"
	"github.com/abhisek/satprep/internal/screens/statistics"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/ui/components"
	"github.com/abhisek/satprep/internal/ui/layout"
	"github.com/abhisek/satprep/internal/ui/theme"
)

const (
	itemResume = iota
	itemNew
	itemHistory
	itemStats
	itemQuit
)

// loadedMsg carries what the home screen shows about stored sessions.
type loadedMsg struct {
	current *session.Session
	last    *session.Session
	count   int
	notice  string
}

// HomeScreen is the main home screen of the application.
type HomeScreen struct {
	env    screen.Env
	menu   components.Menu
	loaded loadedMsg
	ready  bool
}

var _ screen.Screen = (*HomeScreen)(nil)
var _ screen.KeyHintProvider = (*HomeScreen)(nil)

// New creates a new HomeScreen.
func New(env screen.Env) *HomeScreen {
	h := &HomeScreen{env: env}
	h.menu = components.NewMenu(h.items())
	return h
}

// Init reloads the stored sessions; it runs again whenever the screen is
// revealed by a pop.
func (h *HomeScreen) Init() tea.Cmd {
	env := h.env
	return func() tea.Msg {
		return load(context.Background(), env)
	}
}

func load(ctx context.Context, env screen.Env) loadedMsg {
	var msg loadedMsg

	if st := env.Engine.State(); st.Phase.Live() {
		cur := st.Session.Clone()
		msg.current = &cur
	} else if cur, err := env.Persister.Restore(ctx); err == nil {
		msg.current = &cur
	} else {
		var rerr *session.RestoreError
		if errors.As(err, &rerr) && rerr.Reason != session.ReasonEmpty {
			msg.notice = rerr.Reason.Message()
		}
	}

	if hist, err := env.Persister.ListHistory(ctx); err == nil && len(hist) > 0 {
		last := hist[len(hist)-1]
		msg.last = &last
		msg.count = len(hist)
	}
	return msg
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if msg, ok := msg.(loadedMsg); ok {
		h.loaded = msg
		selected := h.menu.Selected
		h.menu = components.NewMenu(h.items())
		// Coming back from a sub screen keeps the cursor where it was.
		if h.ready && !h.menu.Items[selected].Disabled {
			h.menu.Selected = selected
		}
		h.ready = true
		return h, nil
	}

	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) items() []components.MenuItem {
	env := h.env
	cur, last := h.loaded.current, h.loaded.last

	resume := components.MenuItem{Label: "Resume session", Disabled: cur == nil}
	if cur != nil {
		sel := cur.Selections
		resume.Hint = fmt.Sprintf("%s · %d answered", sel, len(cur.QuestionAnswers))
		resume.Action = push(func() screen.Screen { return practice.New(env, sel) })
	}

	var prefill *session.Selections
	switch {
	case cur != nil:
		prefill = &cur.Selections
	case last != nil:
		prefill = &last.Selections
	}

	items := make([]components.MenuItem, itemQuit+1)
	items[itemResume] = resume
	items[itemNew] = components.MenuItem{
		Label:  "New practice",
		Action: push(func() screen.Screen { return setup.New(env, prefill) }),
	}
	items[itemHistory] = components.MenuItem{
		Label:  "History",
		Action: push(func() screen.Screen { return history.New(env) }),
	}
	items[itemStats] = components.MenuItem{
		Label:  "Statistics",
		Action: push(func() screen.Screen { return statistics.New(env) }),
	}
	items[itemQuit] = components.MenuItem{
		Label:  "Quit",
		Action: func() tea.Cmd { return tea.Quit },
	}
	return items
}

func push(build func() screen.Screen) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg { return router.PushScreenMsg{Screen: build()} }
	}
}

func (h *HomeScreen) View(width, height int) string {
	compact := height < 22 || width < 60
	cw := contentWidth(width)

	resumable := ""
	if cur := h.loaded.current; cur != nil {
		resumable = cur.Selections.String()
	}
	var accuracy float64
	if last := h.loaded.last; last != nil {
		accuracy = session.BuildSummary(*last).Accuracy
	}

	sections := []string{
		renderBanner(cw, compact),
		renderStatusBar(resumable, h.loaded.count, accuracy, cw),
	}
	if h.loaded.notice != "" {
		sections = append(sections, lipgloss.NewStyle().Width(cw).Align(lipgloss.Center).
			Render(theme.Notice.Render(h.loaded.notice)))
	}
	sections = append(sections, theme.Card.Width(cw).Render(strings.TrimRight(h.menu.View(), "\n")))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		strings.Join(sections, "\n\n"))
}

func (h *HomeScreen) Title() string {
	return "Home"
}

func (h *HomeScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑/↓", Description: "Move"},
		{Key: "Enter", Description: "Select"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func percent(f float64) string {
	return fmt.Sprintf("%.0f%%", f*100)
}
