// Package app wires the screens into the root Bubble Tea program.
package app

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/satprep/internal/router"
	"github.com/abhisek/satprep/internal/screen"
	"github.com/abhisek/satprep/internal/screens/home"
	"github.com/abhisek/satprep/internal/screens/practice"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/ui/layout"
)

// Options selects what the program opens on.
type Options struct {
	Env screen.Env

	// Practice, when set, starts or resumes a session with these
	// selections instead of stopping at the home screen.
	Practice *session.Selections

	// Resume continues the stored session straight away.
	Resume bool
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	env    screen.Env
	router *router.Router
	init   tea.Cmd
	width  int
	height int
}

// newAppModel creates the model with home at the bottom of the stack.
func newAppModel(opts Options) AppModel {
	h := home.New(opts.Env)
	r := router.New(h)
	cmds := []tea.Cmd{h.Init()}

	switch {
	case opts.Practice != nil:
		cmds = append(cmds, r.Push(practice.New(opts.Env, *opts.Practice)))
	case opts.Resume:
		cmds = append(cmds, r.Push(practice.NewResume(opts.Env)))
	}

	return AppModel{
		env:    opts.Env,
		router: r,
		init:   tea.Batch(cmds...),
	}
}

func (m AppModel) Init() tea.Cmd {
	return m.init
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

// status is the header's right side: the running score of a live session
// and whether a save is in flight.
func (m AppModel) status() string {
	if m.env.Engine == nil {
		return ""
	}
	sig := m.env.Engine.Signals()
	if !sig.Phase.Live() {
		return ""
	}
	s := fmt.Sprintf("✓ %d/%d", sig.Correct, sig.Answered)
	if sig.Saving {
		s = "saving…  " + s
	}
	return s + "  "
}

func (m AppModel) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render lays out the header, the active screen and the footer.
func (m AppModel) render() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.router.Active()
	title := ""
	var hints []layout.KeyHint
	if active != nil {
		title = active.Title()
		if p, ok := active.(screen.KeyHintProvider); ok {
			hints = p.KeyHints()
		}
	}
	if hints == nil {
		hints = []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}

	header := layout.RenderHeader(title, m.status(), m.width)
	footer := layout.RenderFooter(hints, m.width)

	contentHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	content := m.router.View(m.width, contentHeight)
	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

// Run starts the Bubble Tea program and blocks until it exits. Engine
// changes are forwarded to the active screen as screen.EngineChangedMsg.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(newAppModel(opts), tea.WithContext(ctx))

	// OnChange runs on the goroutine that dispatched the action, which
	// may be the program's own update loop.
	opts.Env.Engine.OnChange(func(session.Signals) {
		go p.Send(screen.EngineChangedMsg{})
	})
	defer opts.Env.Engine.OnChange(nil)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}
	return nil
}
