package practice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/satprep/internal/llm"
	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/router"
	"github.com/abhisek/satprep/internal/screen"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/stats"
	"github.com/abhisek/satprep/internal/store"
	"github.com/abhisek/satprep/internal/tutor"
)

var practiceSel = session.Selections{
	Assessment:   "SAT",
	Subject:      "math",
	Domains:      []string{"H"},
	Skills:       []string{"H.A.1"},
	Difficulties: []string{"M"},
}

func mcq(n int) []*questionbank.Question {
	qs := make([]*questionbank.Question, n)
	for i := range qs {
		id := fmt.Sprintf("q%d", i+1)
		qs[i] = &questionbank.Question{
			Reference: questionbank.Reference{
				QuestionID:     id,
				ExternalID:     "ext-" + id,
				Difficulty:     "M",
				PrimaryClassCd: "H",
				SkillCd:        "H.A.1",
			},
			Type:          questionbank.TypeMultipleChoice,
			Stem:          "<p>Stem of " + id + "</p>",
			Options:       []questionbank.AnswerOption{{Key: "A", Content: "4"}, {Key: "B", Content: "5"}},
			CorrectAnswer: []string{"A"},
			Rationale:     "<p>Choice A is correct.</p>",
		}
	}
	return qs
}

func spr() []*questionbank.Question {
	q := mcq(1)[0]
	q.Type = questionbank.TypeFreeResponse
	q.Options = nil
	q.CorrectAnswer = []string{"4", "4.0"}
	return []*questionbank.Question{q}
}

func newTestEnv(t *testing.T, qs []*questionbank.Question, stub *llm.Stub) screen.Env {
	t.Helper()
	repo := store.NewMemoryRepo()
	p := session.NewPersister(repo, session.PersisterConfig{HistoryLimit: 20, Debounce: 10 * time.Millisecond}, nil)
	env := screen.Env{
		Engine:    session.NewEngine(questionbank.NewStatic(qs), p, stats.NewStoreSink(repo)),
		Persister: p,
		Stats:     repo,
	}
	if stub != nil {
		env.Tutor = tutor.NewService(stub, tutor.DefaultConfig())
	}
	t.Cleanup(func() { env.Engine.Close(context.Background()) })
	return env
}

// start runs the begin command and waits for the first batch.
func start(t *testing.T, s *PracticeScreen) {
	t.Helper()
	s.Update(s.begin()())
	s.env.Engine.Wait()
	s.Update(screen.EngineChangedMsg{})
}

func press(s *PracticeScreen, r rune) tea.Cmd {
	_, cmd := s.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	return cmd
}

func enter(s *PracticeScreen) tea.Cmd {
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	return cmd
}

func TestPracticeScreen_ShowsFirstQuestion(t *testing.T) {
	s := New(newTestEnv(t, mcq(3), nil), practiceSel)
	if !strings.Contains(s.View(80, 24), "Preparing your session") {
		t.Error("expected the loading view before start")
	}
	start(t, s)

	view := s.View(100, 40)
	for _, want := range []string{"Question 1 of 3", "Stem of q1", "A)", "Medium"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "<p>") {
		t.Error("markup should be stripped")
	}
}

func TestPracticeScreen_CheckThenNext(t *testing.T) {
	s := New(newTestEnv(t, mcq(3), nil), practiceSel)
	start(t, s)

	press(s, 'a')
	enter(s)
	if !s.sig.Question.Checked {
		t.Fatal("expected the question to be checked")
	}
	view := s.View(100, 40)
	if !strings.Contains(view, "Correct!") {
		t.Error("expected correct feedback")
	}
	if !strings.Contains(view, "Choice A is correct.") {
		t.Error("expected the rationale once checked")
	}

	enter(s)
	if s.sig.Step != 1 {
		t.Errorf("Step = %d, want 1", s.sig.Step)
	}
	if s.sig.Question.Checked {
		t.Error("next question should start unchecked")
	}
}

func TestPracticeScreen_WrongAnswerShowsKey(t *testing.T) {
	s := New(newTestEnv(t, mcq(3), nil), practiceSel)
	start(t, s)

	press(s, 'b')
	enter(s)
	view := s.View(100, 40)
	if !strings.Contains(view, "Not quite.") || !strings.Contains(view, "Correct answer: A") {
		t.Errorf("expected incorrect feedback with the key, got:\n%s", view)
	}
	if s.sig.Correct != 0 || s.sig.Answered != 1 {
		t.Errorf("score = %d/%d, want 0/1", s.sig.Correct, s.sig.Answered)
	}
}

func TestPracticeScreen_ReviewPreviousQuestion(t *testing.T) {
	s := New(newTestEnv(t, mcq(3), nil), practiceSel)
	start(t, s)

	press(s, 'b')
	enter(s)
	enter(s)
	press(s, '<')

	if s.sig.Step != 0 {
		t.Fatalf("Step = %d, want 0", s.sig.Step)
	}
	if s.sig.Question.Mode != session.ModeReview {
		t.Error("expected review mode")
	}
	if !strings.Contains(s.View(100, 40), "REVIEW") {
		t.Error("expected the review badge")
	}
}

func TestPracticeScreen_FreeResponse(t *testing.T) {
	s := New(newTestEnv(t, spr(), nil), practiceSel)
	start(t, s)

	press(s, 'x')
	press(s, '4')
	if got := s.input.Value(); got != "4" {
		t.Errorf("input = %q, want %q", got, "4")
	}
	enter(s)
	if !s.sig.Question.IsCorrect {
		t.Error("expected 4 to be accepted")
	}
}

func TestPracticeScreen_QuitConfirm(t *testing.T) {
	s := New(newTestEnv(t, mcq(3), nil), practiceSel)
	start(t, s)

	s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if !s.confirmQuit {
		t.Fatal("expected the quit confirmation")
	}
	press(s, 'n')
	if s.confirmQuit {
		t.Fatal("n should dismiss the confirmation")
	}

	s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	cmd := press(s, 'y')
	if cmd == nil {
		t.Fatal("expected a command after ending the session")
	}
	if _, ok := cmd().(router.ReplaceScreenMsg); !ok {
		t.Error("expected the summary to replace the practice screen")
	}
	if s.env.Engine.Signals().Phase != session.PhaseAbandoned {
		t.Error("expected the session to be abandoned")
	}
}

func TestPracticeScreen_CompletesIntoSummary(t *testing.T) {
	s := New(newTestEnv(t, mcq(1), nil), practiceSel)
	start(t, s)

	press(s, 'a')
	enter(s)
	cmd := enter(s)
	if cmd == nil {
		t.Fatal("expected a command once the last question is done")
	}
	msg, ok := cmd().(router.ReplaceScreenMsg)
	if !ok {
		t.Fatalf("expected ReplaceScreenMsg, got %T", cmd())
	}
	if !strings.Contains(msg.Screen.View(80, 24), "Session complete!") {
		t.Error("expected the completed summary")
	}
}

func TestPracticeScreen_Explain(t *testing.T) {
	stub := llm.NewStub(llm.StubReply{Content: json.RawMessage(`{
		"explanation": "Four is the only value that works.",
		"steps": ["Substitute each choice", "Only A balances"],
		"keyConcept": "checking solutions"
	}`)})
	s := New(newTestEnv(t, mcq(3), stub), practiceSel)
	start(t, s)

	if cmd := press(s, 'e'); cmd != nil {
		t.Error("explain should wait for a checked question")
	}
	press(s, 'b')
	enter(s)

	cmd := press(s, 'e')
	if cmd == nil {
		t.Fatal("expected an explain command")
	}
	if !strings.Contains(s.View(100, 40), "Asking the tutor") {
		t.Error("expected the pending hint")
	}
	s.Update(cmd())

	view := s.View(100, 40)
	for _, want := range []string{"Key concept: checking solutions", "1. Substitute each choice"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if len(stub.Calls()) != 1 {
		t.Errorf("tutor calls = %d, want 1", len(stub.Calls()))
	}
}

func TestPracticeScreen_ExplainFailure(t *testing.T) {
	s := New(newTestEnv(t, mcq(3), llm.NewStub()), practiceSel)
	start(t, s)

	press(s, 'a')
	enter(s)
	s.Update(press(s, 'e')())
	if !strings.Contains(s.View(100, 40), "tutor is unavailable") {
		t.Error("expected the tutor failure notice")
	}
}

func TestPracticeScreen_NoMatchingQuestions(t *testing.T) {
	sel := practiceSel
	sel.Domains = []string{"P"}
	s := New(newTestEnv(t, mcq(3), nil), sel)
	start(t, s)

	if s.errMsg == "" {
		t.Fatal("expected an error for an empty selection")
	}
	cmd := press(s, 'x')
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Error("any key should go back")
	}
}

func TestPracticeScreen_ResumeWithoutSession(t *testing.T) {
	s := NewResume(newTestEnv(t, mcq(3), nil))
	s.Update(s.begin()())
	if s.errMsg != session.ReasonEmpty.Message() {
		t.Errorf("errMsg = %q, want %q", s.errMsg, session.ReasonEmpty.Message())
	}
}

func TestPracticeScreen_KeyHints(t *testing.T) {
	s := New(newTestEnv(t, mcq(3), llm.NewStub()), practiceSel)
	start(t, s)

	if got := s.KeyHints()[0].Description; got != "Check" {
		t.Errorf("first hint = %q, want Check", got)
	}
	press(s, 'a')
	enter(s)
	hints := s.KeyHints()
	if hints[0].Description != "Next" || hints[1].Description != "Explain" {
		t.Errorf("checked hints = %+v", hints)
	}
}
