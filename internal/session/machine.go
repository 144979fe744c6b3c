package session

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/stats"
)

// Phase is the machine's position in the session lifecycle.
type Phase int

const (
	PhaseNoSession    Phase = iota // Nothing started or resumed
	PhaseLoadingBatch              // Hydrating a batch
	PhaseAnswering                 // Active question awaits a first answer
	PhaseChecked                   // Active question has an answer on record
	PhaseCompleted                 // Ran out of questions
	PhaseAbandoned                 // User exited
)

func (p Phase) String() string {
	switch p {
	case PhaseNoSession:
		return "no_session"
	case PhaseLoadingBatch:
		return "loading_batch"
	case PhaseAnswering:
		return "answering"
	case PhaseChecked:
		return "checked"
	case PhaseCompleted:
		return "completed"
	case PhaseAbandoned:
		return "abandoned"
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for c := PhaseNoSession; c <= PhaseAbandoned; c++ {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Live reports whether the phase belongs to a running session.
func (p Phase) Live() bool {
	return p == PhaseLoadingBatch || p == PhaseAnswering || p == PhaseChecked
}

// Mode tells first attempts from reviews. It is fixed when a step is
// entered: a question with an answer on record is always reviewed.
type Mode int

const (
	ModeFirstAttempt Mode = iota
	ModeReview
)

func (m Mode) String() string {
	if m == ModeReview {
		return "review"
	}
	return "first_attempt"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "first_attempt":
		*m = ModeFirstAttempt
	case "review":
		*m = ModeReview
	default:
		return fmt.Errorf("unknown mode %q", b)
	}
	return nil
}

// Active describes the question at CurrentQuestionStep.
type Active struct {
	Mode     Mode
	Selected string
	Correct  bool
	Watch    Stopwatch
}

// State is the complete machine state. Reduce never mutates its input.
type State struct {
	Phase    Phase
	Session  Session
	Batch    []*questionbank.Question
	HasMore  bool
	Progress questionbank.Progress
	Active   Active

	// InProgress holds elapsed time of questions left before checking.
	InProgress map[string]time.Duration

	// Notice is the latest user-facing message.
	Notice string

	rehydrating bool
	persisted   bool
}

// Question returns the active question, or nil.
func (s State) Question() *questionbank.Question {
	if s.Phase != PhaseAnswering && s.Phase != PhaseChecked {
		return nil
	}
	i := s.Session.CurrentQuestionStep
	if i < 0 || i >= len(s.Batch) {
		return nil
	}
	return s.Batch[i]
}

// Elapsed returns the time shown for the active question at now.
func (s State) Elapsed(now time.Time) time.Duration {
	return s.Active.Watch.Elapsed(now)
}

func (s State) clone() State {
	s.Session = s.Session.Clone()
	s.Batch = slices.Clone(s.Batch)
	s.InProgress = maps.Clone(s.InProgress)
	if s.InProgress == nil {
		s.InProgress = map[string]time.Duration{}
	}
	return s
}

// Reduce applies a to s and returns the next state with the effects to
// run, in order. Actions that do not apply in the current phase return s
// unchanged and no effects.
func Reduce(s State, a Action) (State, []Effect) {
	n := s.clone()
	var effects []Effect
	var ok bool

	switch a := a.(type) {
	case Start:
		effects, ok = n.start(a)
	case Resume:
		effects, ok = n.resume(a)
	case BatchProgressed:
		ok = n.batchProgressed(a)
	case BatchLoaded:
		effects, ok = n.batchLoaded(a)
	case BatchFailed:
		effects, ok = n.batchFailed(a)
	case Select:
		ok = n.selectAnswer(a)
	case Check:
		effects, ok = n.check(a)
	case Next:
		effects, ok = n.next(a)
	case Previous:
		effects, ok = n.move(n.Session.CurrentQuestionStep-1, a.At)
	case GoTo:
		effects, ok = n.move(a.Step, a.At)
	case Exit:
		effects, ok = n.exit(a)
	}

	if !ok {
		return s, nil
	}
	return n, effects
}

func (n *State) start(a Start) ([]Effect, bool) {
	if n.Phase.Live() || a.SessionID == "" {
		return nil, false
	}
	*n = State{
		Phase:      PhaseLoadingBatch,
		Session:    newSession(a.SessionID, a.Selections, a.At),
		InProgress: map[string]time.Duration{},
	}
	return []Effect{n.loadNext()}, true
}

func (n *State) resume(a Resume) ([]Effect, bool) {
	if n.Phase.Live() || a.Session.Status != StatusInProgress {
		return nil, false
	}
	sess := a.Session.Clone()
	if sess.QuestionAnswers == nil {
		sess.QuestionAnswers = map[string]string{}
	}
	if sess.QuestionTimes == nil {
		sess.QuestionTimes = map[string]int64{}
	}
	if sess.AnsweredQuestions == nil {
		sess.AnsweredQuestions = []AnsweredQuestion{}
	}
	*n = State{
		Phase:      PhaseLoadingBatch,
		Session:    sess,
		InProgress: map[string]time.Duration{},
		persisted:  true,
	}

	if len(sess.BatchRefs) == 0 {
		return []Effect{n.loadNext()}, true
	}
	n.rehydrating = true
	return []Effect{LoadBatch{
		SessionID:  sess.SessionID,
		Selections: sess.Selections,
		Rehydrate:  true,
		Refs:       slices.Clone(sess.BatchRefs),
		Consumed:   sess.ConsumedRefs,
		Batch:      sess.CurrentBatch,
	}}, true
}

func (n *State) loadNext() LoadBatch {
	return LoadBatch{
		SessionID:  n.Session.SessionID,
		Selections: n.Session.Selections,
		Consumed:   n.Session.ConsumedRefs,
		Batch:      n.Session.CurrentBatch,
	}
}

func (n *State) pendingFor(id string) bool {
	return n.Phase == PhaseLoadingBatch && id == n.Session.SessionID
}

func (n *State) batchProgressed(a BatchProgressed) bool {
	if !n.pendingFor(a.SessionID) {
		return false
	}
	n.Progress = a.Progress
	return true
}

func (n *State) batchLoaded(a BatchLoaded) ([]Effect, bool) {
	// A late batch for an exited or replaced session is discarded.
	if !n.pendingFor(a.SessionID) {
		return nil, false
	}

	b := a.Batch
	if n.rehydrating {
		return n.rehydrated(b, a.At), true
	}

	n.Batch = slices.Clone(b.Questions)
	n.HasMore = b.HasMore
	n.Progress = questionbank.Progress{}
	n.Session.BatchRefs = refsOf(b.Questions)
	n.Session.CurrentBatch = b.Number
	n.Session.ConsumedRefs = b.Consumed
	n.Session.CurrentQuestionStep = 0
	if len(n.Batch) == 0 {
		return n.batchExhausted(a.At), true
	}
	n.enterStep(0, a.At)
	n.persisted = true
	return []Effect{n.save(a.At, true)}, true
}

// rehydrated restores a resumed session onto its saved batch. The saved
// BatchRefs are kept even when some of them no longer hydrate, and the
// active question is found by id so dropped items do not shift it.
func (n *State) rehydrated(b questionbank.Batch, at time.Time) []Effect {
	n.rehydrating = false
	if len(b.Questions) == 0 {
		return n.failLoad()
	}
	n.Batch = slices.Clone(b.Questions)
	n.HasMore = b.HasMore
	n.Progress = questionbank.Progress{}

	step := slices.IndexFunc(n.Batch, func(q *questionbank.Question) bool {
		return q.QuestionID == n.Session.CurrentQuestionID
	})
	if n.Session.CurrentQuestionID == "" || step < 0 {
		step = min(max(n.Session.CurrentQuestionStep, 0), len(n.Batch)-1)
	}
	n.enterStep(step, at)
	return nil
}

// batchExhausted handles a batch that hydrated to nothing.
func (n *State) batchExhausted(at time.Time) []Effect {
	if n.HasMore {
		n.Phase = PhaseLoadingBatch
		return []Effect{n.loadNext()}
	}
	if !n.persisted {
		msg := "No questions match these selections."
		*n = State{Phase: PhaseNoSession, Notice: msg, InProgress: map[string]time.Duration{}}
		return []Effect{Notify{Message: msg}}
	}
	return n.complete(at)
}

func (n *State) batchFailed(a BatchFailed) ([]Effect, bool) {
	if !n.pendingFor(a.SessionID) {
		return nil, false
	}
	return n.failLoad(), true
}

// failLoad drops back to no session. A persisted record is left as is so
// it can be resumed later.
func (n *State) failLoad() []Effect {
	msg := "Could not load questions."
	if n.persisted {
		msg += " Your session is saved; resume to try again."
	}
	*n = State{Phase: PhaseNoSession, Notice: msg, InProgress: map[string]time.Duration{}}
	return []Effect{Notify{Message: msg}}
}

func (n *State) selectAnswer(a Select) bool {
	if n.Phase != PhaseAnswering || n.Active.Mode != ModeFirstAttempt {
		return false
	}
	n.Active.Selected = a.Answer
	return true
}

func (n *State) check(a Check) ([]Effect, bool) {
	if n.Phase != PhaseAnswering || n.Active.Mode != ModeFirstAttempt {
		return nil, false
	}
	q := n.Question()
	answer := strings.TrimSpace(n.Active.Selected)
	if q == nil || answer == "" {
		return nil, false
	}
	if _, answered := n.Session.QuestionAnswers[q.QuestionID]; answered {
		return nil, false
	}

	correct := q.IsCorrect(answer)
	watch := n.Active.Watch.Stop(a.At)
	ms := watch.Carried.Milliseconds()

	n.Session.QuestionAnswers[q.QuestionID] = answer
	n.Session.QuestionTimes[q.QuestionID] = ms
	delete(n.InProgress, q.QuestionID)
	n.Session.AnsweredQuestions = append(n.Session.AnsweredQuestions, AnsweredQuestion{
		QuestionID:     q.QuestionID,
		Answer:         answer,
		TimeMs:         ms,
		IsCorrect:      correct,
		SkillCd:        q.SkillCd,
		PrimaryClassCd: q.PrimaryClassCd,
		Difficulty:     q.Difficulty,
		ExternalID:     q.ExternalID,
		IBN:            q.IBN,
	})

	n.Active = Active{Mode: ModeFirstAttempt, Selected: answer, Correct: correct, Watch: watch}
	n.Phase = PhaseChecked

	rec := stats.Record{
		SessionID:      n.Session.SessionID,
		Assessment:     n.Session.Selections.Assessment,
		PrimaryClassCd: q.PrimaryClassCd,
		SkillCd:        q.SkillCd,
		QuestionID:     q.QuestionID,
		ExternalID:     q.ExternalID,
		IBN:            q.IBN,
		Statistic: stats.Statistic{
			Time:       ms,
			Answer:     answer,
			IsCorrect:  correct,
			ExternalID: q.ExternalID,
			IBN:        q.IBN,
		},
		RecordedAt: a.At,
	}
	// The statistic must be emitted before the save that reflects it.
	return []Effect{EmitStatistic{Record: rec}, n.save(a.At, false)}, true
}

func (n *State) next(a Next) ([]Effect, bool) {
	if n.Phase != PhaseChecked {
		return nil, false
	}
	step := n.Session.CurrentQuestionStep + 1
	if step < len(n.Batch) {
		n.enterStep(step, a.At)
		return []Effect{n.save(a.At, true)}, true
	}
	if n.HasMore {
		n.Phase = PhaseLoadingBatch
		n.Active = Active{}
		n.Progress = questionbank.Progress{}
		return []Effect{n.save(a.At, true), n.loadNext()}, true
	}
	return n.complete(a.At), true
}

func (n *State) move(step int, at time.Time) ([]Effect, bool) {
	if n.Phase != PhaseAnswering && n.Phase != PhaseChecked {
		return nil, false
	}
	if step < 0 || step >= len(n.Batch) || step == n.Session.CurrentQuestionStep {
		return nil, false
	}
	n.leaveStep(at)
	n.enterStep(step, at)
	return []Effect{n.save(at, false)}, true
}

func (n *State) exit(a Exit) ([]Effect, bool) {
	if !n.Phase.Live() {
		return nil, false
	}
	n.leaveStep(a.At)
	n.Phase = PhaseAbandoned
	n.Active = Active{}
	n.rehydrating = false
	return []Effect{n.finalize(StatusAbandoned, a.At)}, true
}

func (n *State) complete(at time.Time) []Effect {
	n.Phase = PhaseCompleted
	n.Active = Active{}
	return []Effect{n.finalize(StatusCompleted, at)}
}

// leaveStep parks the live stopwatch of an unchecked question.
func (n *State) leaveStep(at time.Time) {
	if n.Phase != PhaseAnswering || !n.Active.Watch.Running() {
		return
	}
	if q := n.Question(); q != nil {
		n.InProgress[q.QuestionID] = n.Active.Watch.Elapsed(at)
	}
	n.Active.Watch = n.Active.Watch.Stop(at)
}

// enterStep activates step and fixes its mode.
func (n *State) enterStep(step int, at time.Time) {
	q := n.Batch[step]
	n.Session.CurrentQuestionStep = step
	n.Session.CurrentQuestionID = q.QuestionID

	answer, answered := n.Session.QuestionAnswers[q.QuestionID]
	if !answered {
		n.Phase = PhaseAnswering
		n.Active = Active{
			Mode:  ModeFirstAttempt,
			Watch: StartStopwatch(n.InProgress[q.QuestionID], at),
		}
		return
	}

	var correct bool
	if d, ok := n.Session.Detail(q.QuestionID); ok {
		correct = d.IsCorrect
	} else {
		correct = q.IsCorrect(answer)
	}
	n.Phase = PhaseChecked
	n.Active = Active{
		Mode:     ModeReview,
		Selected: answer,
		Correct:  correct,
		Watch:    Stopwatch{Carried: time.Duration(n.Session.QuestionTimes[q.QuestionID]) * time.Millisecond},
	}
}

// snapshot refreshes derived fields and returns a deep copy for effects.
func (n *State) snapshot(at time.Time) Session {
	n.Session.UpdatedAt = at
	n.Session.recompute(questionbank.QuestionIDs(n.Batch))
	return n.Session.Clone()
}

func (n *State) save(at time.Time, immediate bool) Save {
	return Save{Session: n.snapshot(at), Immediate: immediate}
}

func (n *State) finalize(status Status, at time.Time) Finalize {
	n.Session.Status = status
	ended := at
	n.Session.EndedAt = &ended
	return Finalize{Session: n.snapshot(at), Status: status}
}

func refsOf(qs []*questionbank.Question) []questionbank.Reference {
	refs := make([]questionbank.Reference, len(qs))
	for i, q := range qs {
		refs[i] = q.Reference
	}
	return refs
}
