// Package practice is the question screen of a practice session.
package practice

import (
	"context"
	"errors"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/router"
	"github.com/abhisek/satprep/internal/screen"
	"github.com/abhisek/satprep/internal/screens/summary"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/tutor"
	"github.com/abhisek/satprep/internal/ui/components"
	"github.com/abhisek/satprep/internal/ui/layout"
)

// PracticeScreen implements screen.Screen for a live session. The engine
// owns all session state; the screen mirrors its signals and turns keys
// into engine actions.
type PracticeScreen struct {
	env    screen.Env
	sel    session.Selections
	resume bool

	started  bool
	finished bool
	sig      session.Signals

	// Widgets are rebuilt whenever the active question or its checked
	// state changes.
	qid     string
	checked bool
	choices components.Choices
	input   components.TextInput

	confirmQuit bool
	explaining  bool
	explanation *tutor.Explanation
	explainErr  string
	errMsg      string
}

var _ screen.Screen = (*PracticeScreen)(nil)
var _ screen.KeyHintProvider = (*PracticeScreen)(nil)

// New creates a screen that resumes the persisted session when it was
// started with sel and otherwise starts a fresh one.
func New(env screen.Env, sel session.Selections) *PracticeScreen {
	return &PracticeScreen{env: env, sel: sel}
}

// NewResume creates a screen that continues the persisted session.
func NewResume(env screen.Env) *PracticeScreen {
	return &PracticeScreen{env: env, resume: true}
}

func (s *PracticeScreen) Init() tea.Cmd {
	return tea.Batch(s.begin(), tickCmd())
}

func (s *PracticeScreen) Title() string {
	return "Practice"
}

func (s *PracticeScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.errMsg != "":
		return []layout.KeyHint{{Key: "any key", Description: "Back"}}
	case s.confirmQuit:
		return []layout.KeyHint{
			{Key: "Y", Description: "End session"},
			{Key: "N", Description: "Keep going"},
		}
	case s.sig.Question == nil:
		return []layout.KeyHint{{Key: "Esc", Description: "Quit"}}
	}

	var hints []layout.KeyHint
	if s.sig.Question.Checked {
		hints = append(hints, layout.KeyHint{Key: "Enter", Description: "Next"})
		if s.env.Tutor != nil {
			hints = append(hints, layout.KeyHint{Key: "e", Description: "Explain"})
		}
	} else {
		hints = append(hints, layout.KeyHint{Key: "Enter", Description: "Check"})
		if s.sig.Question.Type == questionbank.TypeMultipleChoice {
			hints = append(hints, layout.KeyHint{Key: "↑/↓", Description: "Choose"})
		}
	}
	return append(hints,
		layout.KeyHint{Key: "</>", Description: "Prev/Next"},
		layout.KeyHint{Key: "Esc", Description: "Quit"},
	)
}

func (s *PracticeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		return s, s.handleStarted(msg)

	case screen.EngineChangedMsg:
		return s, s.refresh()

	case explainedMsg:
		s.handleExplained(msg)
		return s, nil

	case timerTickMsg:
		if s.finished {
			return s, nil
		}
		return s, tea.Batch(s.refresh(), tickCmd())

	case tea.KeyMsg:
		return s, s.handleKey(msg)
	}
	return s, nil
}

// begin starts or resumes the session off the UI goroutine.
func (s *PracticeScreen) begin() tea.Cmd {
	engine, sel, resume := s.env.Engine, s.sel, s.resume
	return func() tea.Msg {
		ctx := context.Background()
		if resume {
			return startedMsg{Resumed: true, Err: engine.ResumeCurrent(ctx)}
		}
		resumed, err := engine.StartOrResume(ctx, sel)
		return startedMsg{Resumed: resumed, Err: err}
	}
}

func (s *PracticeScreen) handleStarted(msg startedMsg) tea.Cmd {
	s.started = true
	if msg.Err != nil {
		var rerr *session.RestoreError
		if errors.As(msg.Err, &rerr) {
			s.errMsg = rerr.Reason.Message()
		} else {
			s.errMsg = msg.Err.Error()
		}
		return nil
	}
	return s.refresh()
}

// refresh pulls the engine signals and keeps the widgets in step.
func (s *PracticeScreen) refresh() tea.Cmd {
	s.sig = s.env.Engine.Signals()

	switch s.sig.Phase {
	case session.PhaseCompleted, session.PhaseAbandoned:
		if s.finished {
			return nil
		}
		s.finished = true
		sum := session.BuildSummary(s.env.Engine.State().Session)
		notice := s.sig.Notice
		return func() tea.Msg {
			return router.ReplaceScreenMsg{Screen: summary.New(&sum, notice)}
		}
	case session.PhaseNoSession:
		if s.started && s.sig.Notice != "" {
			s.errMsg = s.sig.Notice
		}
	}

	q := s.sig.Question
	if q == nil {
		s.qid = ""
		return nil
	}
	if q.QuestionID == s.qid && q.Checked == s.checked {
		return nil
	}
	if q.QuestionID != s.qid {
		s.explanation = nil
		s.explainErr = ""
		s.explaining = false
	}
	s.qid, s.checked = q.QuestionID, q.Checked
	return s.rebuildWidgets(q)
}

func (s *PracticeScreen) rebuildWidgets(q *session.QuestionView) tea.Cmd {
	if q.Type == questionbank.TypeFreeResponse {
		s.input = components.NewTextInput("Type your answer...", true, 12)
		s.input.SetValue(q.Selected)
		if q.Checked {
			s.input.Lock(q.IsCorrect)
			return nil
		}
		return s.input.Init()
	}
	s.choices = components.NewChoices(q.Options, q.Selected)
	if q.Checked {
		s.choices.Lock(q.Selected, q.CorrectAnswer)
	}
	return nil
}

func (s *PracticeScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()

	if s.errMsg != "" {
		return func() tea.Msg { return router.PopScreenMsg{} }
	}

	if s.confirmQuit {
		switch key {
		case "y", "Y":
			s.confirmQuit = false
			s.env.Engine.Exit()
			return s.refresh()
		case "n", "N", "esc":
			s.confirmQuit = false
		}
		return nil
	}

	if key == "esc" {
		if !s.sig.Phase.Live() {
			return func() tea.Msg { return router.PopScreenMsg{} }
		}
		s.confirmQuit = true
		return nil
	}

	q := s.sig.Question
	if q == nil {
		return nil
	}
	engine := s.env.Engine

	switch key {
	case "<", "shift+tab":
		engine.Previous()
		return s.refresh()
	case ">", "tab":
		engine.GoTo(s.sig.Step + 1)
		return s.refresh()
	case "enter":
		if q.Checked {
			engine.Next()
		} else {
			engine.Select(s.answer(q))
			engine.Check()
		}
		return s.refresh()
	}

	if q.Checked {
		if key == "e" {
			return s.explain()
		}
		return nil
	}

	if q.Type == questionbank.TypeFreeResponse {
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		engine.Select(s.input.Value())
		return cmd
	}
	var moved bool
	if s.choices, moved = s.choices.Update(msg); moved {
		engine.Select(s.choices.Current())
	}
	return nil
}

// answer returns what the widgets currently hold for q.
func (s *PracticeScreen) answer(q *session.QuestionView) string {
	if q.Type == questionbank.TypeFreeResponse {
		return s.input.Value()
	}
	return s.choices.Current()
}

// explain asks the tutor about the checked question.
func (s *PracticeScreen) explain() tea.Cmd {
	tut := s.env.Tutor
	if tut == nil || s.explaining || s.explanation != nil {
		return nil
	}
	st := s.env.Engine.State()
	q := st.Question()
	if st.Phase != session.PhaseChecked || q == nil {
		return nil
	}
	in := tutor.Input{
		Question:  q,
		Answer:    st.Active.Selected,
		IsCorrect: st.Active.Correct,
		TimeMs:    st.Session.QuestionTimes[q.QuestionID],
	}
	s.explaining = true
	s.explainErr = ""
	return func() tea.Msg {
		exp, err := tut.Explain(context.Background(), in)
		return explainedMsg{QuestionID: in.Question.QuestionID, Explanation: exp, Err: err}
	}
}

func (s *PracticeScreen) handleExplained(msg explainedMsg) {
	if msg.QuestionID != s.qid {
		return
	}
	s.explaining = false
	if msg.Err != nil {
		s.explainErr = "The tutor is unavailable right now."
		return
	}
	s.explanation = msg.Explanation
}

// tickCmd returns a 1-second tick command.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return timerTickMsg(t)
	})
}
