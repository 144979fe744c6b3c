package session

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/satprep/internal/questionbank"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func testSelections() Selections {
	return Selections{
		Assessment:   "SAT",
		Subject:      "math",
		Domains:      []string{"H"},
		Skills:       []string{"H.A.1"},
		Difficulties: []string{"E", "M", "H"},
	}
}

// testQuestions returns mcq questions q<from>..q<from+n-1>, all keyed "A".
func testQuestions(from, n int) []*questionbank.Question {
	qs := make([]*questionbank.Question, n)
	for i := range n {
		id := fmt.Sprintf("q%d", from+i)
		qs[i] = &questionbank.Question{
			Reference: questionbank.Reference{
				QuestionID:     id,
				ExternalID:     "ext-" + id,
				Difficulty:     "M",
				PrimaryClassCd: "H",
				SkillCd:        "H.A.1",
			},
			Type: questionbank.TypeMultipleChoice,
			Stem: "Stem of " + id,
			Options: []questionbank.AnswerOption{
				{Key: "A", Content: "1"}, {Key: "B", Content: "2"},
				{Key: "C", Content: "3"}, {Key: "D", Content: "4"},
			},
			CorrectAnswer: []string{"A"},
		}
	}
	return qs
}

// machine drives Reduce and keeps every emitted effect.
type machine struct {
	t       *testing.T
	state   State
	effects []Effect
}

func newMachine(t *testing.T) *machine {
	return &machine{t: t}
}

func (m *machine) do(a Action) []Effect {
	m.t.Helper()
	next, effects := Reduce(m.state, a)
	m.state = next
	m.effects = append(m.effects, effects...)
	assertKeysMatch(m.t, m.state.Session)
	return effects
}

// started returns a machine answering the first of a 21 question batch
// drawn from a pool of 30.
func started(t *testing.T) *machine {
	m := newMachine(t)
	m.do(Start{SessionID: "s1", Selections: testSelections(), At: t0})
	m.do(BatchLoaded{SessionID: "s1", At: t0, Batch: questionbank.Batch{
		Number:    1,
		Questions: testQuestions(1, 21),
		Consumed:  22,
		HasMore:   true,
	}})
	return m
}

func assertKeysMatch(t *testing.T, s Session) {
	t.Helper()
	a := slices.Sorted(maps.Keys(s.QuestionAnswers))
	b := slices.Sorted(maps.Keys(s.QuestionTimes))
	assert.Equal(t, a, b, "answer and time keys diverged")
}

func effectsOf[T Effect](effects []Effect) []T {
	var out []T
	for _, e := range effects {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestStartRequestsFirstBatch(t *testing.T) {
	m := newMachine(t)
	effects := m.do(Start{SessionID: "s1", Selections: testSelections(), At: t0})

	assert.Equal(t, PhaseLoadingBatch, m.state.Phase)
	assert.Equal(t, StatusInProgress, m.state.Session.Status)
	assert.Equal(t, SchemaVersion, m.state.Session.SchemaVersion)
	require.Len(t, effects, 1)
	load := effects[0].(LoadBatch)
	assert.Equal(t, "s1", load.SessionID)
	assert.False(t, load.Rehydrate)
	assert.Zero(t, load.Consumed)
}

func TestStartIgnoredWhileLive(t *testing.T) {
	m := started(t)
	before := m.state
	effects := m.do(Start{SessionID: "s2", Selections: testSelections(), At: t0})
	assert.Empty(t, effects)
	assert.Equal(t, before.Session.SessionID, m.state.Session.SessionID)
}

func TestFirstBatchStartsAtStepZero(t *testing.T) {
	m := started(t)

	assert.Equal(t, PhaseAnswering, m.state.Phase)
	assert.Equal(t, ModeFirstAttempt, m.state.Active.Mode)
	assert.Len(t, m.state.Batch, 21)
	assert.Equal(t, 0, m.state.Session.CurrentQuestionStep)
	assert.Equal(t, 1, m.state.Session.CurrentBatch)
	assert.Equal(t, 22, m.state.Session.ConsumedRefs)
	assert.Len(t, m.state.Session.BatchRefs, 21)
	assert.Equal(t, "q1", m.state.Question().QuestionID)

	saves := effectsOf[Save](m.effects)
	require.Len(t, saves, 1)
	assert.True(t, saves[0].Immediate)
	assert.Equal(t, 21, saves[0].Session.TotalQuestions)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	m := started(t)
	before := m.state
	m.do(Select{Answer: "B"})
	m.do(Check{At: t0.Add(time.Second)})

	assert.Empty(t, before.Session.QuestionAnswers)
	assert.Equal(t, PhaseAnswering, before.Phase)
}

func TestWrongAnswerThenReview(t *testing.T) {
	m := started(t)
	m.do(Select{Answer: "B"})
	effects := m.do(Check{At: t0.Add(10 * time.Second)})

	assert.Equal(t, PhaseChecked, m.state.Phase)
	assert.Equal(t, "B", m.state.Session.QuestionAnswers["q1"])
	assert.Equal(t, int64(10000), m.state.Session.QuestionTimes["q1"])
	assert.False(t, m.state.Active.Correct)

	require.Len(t, effects, 2)
	stat, ok := effects[0].(EmitStatistic)
	require.True(t, ok, "statistic must come before the save")
	assert.False(t, stat.Record.Statistic.IsCorrect)
	assert.Equal(t, "B", stat.Record.Statistic.Answer)
	assert.Equal(t, int64(10000), stat.Record.Statistic.Time)
	assert.Equal(t, "SAT", stat.Record.Assessment)
	assert.Equal(t, "ext-q1", stat.Record.ExternalID)
	save := effects[1].(Save)
	assert.False(t, save.Immediate)

	m.do(Next{At: t0.Add(11 * time.Second)})
	assert.Equal(t, "q2", m.state.Question().QuestionID)

	effects = m.do(Previous{At: t0.Add(20 * time.Second)})
	assert.Equal(t, PhaseChecked, m.state.Phase)
	assert.Equal(t, ModeReview, m.state.Active.Mode)
	assert.Equal(t, "B", m.state.Active.Selected)
	assert.False(t, m.state.Active.Correct)
	assert.Empty(t, effectsOf[EmitStatistic](effects))

	// Review is read only.
	m.do(Select{Answer: "A"})
	assert.Empty(t, m.do(Check{At: t0.Add(25 * time.Second)}))
	assert.Equal(t, "B", m.state.Session.QuestionAnswers["q1"])
	assert.Equal(t, int64(10000), m.state.Session.QuestionTimes["q1"])
	assert.Len(t, effectsOf[EmitStatistic](m.effects), 1)
}

func TestCheckRequiresAnswer(t *testing.T) {
	m := started(t)
	assert.Empty(t, m.do(Check{At: t0}))
	m.do(Select{Answer: "   "})
	assert.Empty(t, m.do(Check{At: t0}))
	assert.Equal(t, PhaseAnswering, m.state.Phase)
}

func TestFreeResponseAnswerIsTrimmed(t *testing.T) {
	m := newMachine(t)
	m.do(Start{SessionID: "s1", Selections: testSelections(), At: t0})
	q := testQuestions(1, 1)[0]
	q.Type = questionbank.TypeFreeResponse
	q.Options = nil
	q.CorrectAnswer = []string{"3/4", ".75 "}
	m.do(BatchLoaded{SessionID: "s1", At: t0, Batch: questionbank.Batch{Number: 1, Questions: []*questionbank.Question{q}, Consumed: 1}})

	m.do(Select{Answer: " .75"})
	m.do(Check{At: t0.Add(time.Second)})
	assert.True(t, m.state.Active.Correct)
	assert.Equal(t, ".75", m.state.Session.QuestionAnswers["q1"])
}

func answerAll(m *machine, at time.Time) time.Time {
	for {
		if m.state.Phase == PhaseAnswering {
			m.do(Select{Answer: "A"})
			at = at.Add(time.Second)
			m.do(Check{At: at})
		}
		if m.state.Session.CurrentQuestionStep == len(m.state.Batch)-1 {
			return at
		}
		m.do(Next{At: at})
	}
}

func TestExhaustedBatchLoadsNext(t *testing.T) {
	m := started(t)
	at := answerAll(m, t0)
	require.Equal(t, 20, m.state.Session.CurrentQuestionStep)

	effects := m.do(Next{At: at})
	require.Len(t, effects, 2)
	assert.True(t, effects[0].(Save).Immediate)
	load := effects[1].(LoadBatch)
	assert.Equal(t, 22, load.Consumed)
	assert.Equal(t, 1, load.Batch)
	assert.Equal(t, PhaseLoadingBatch, m.state.Phase)

	m.do(BatchLoaded{SessionID: "s1", At: at, Batch: questionbank.Batch{
		Number:    2,
		Questions: testQuestions(23, 8),
		Consumed:  30,
	}})
	assert.Equal(t, 2, m.state.Session.CurrentBatch)
	assert.Equal(t, 0, m.state.Session.CurrentQuestionStep)
	assert.Equal(t, PhaseAnswering, m.state.Phase)
	assert.Len(t, m.state.Session.QuestionAnswers, 21)
	assert.Equal(t, "A", m.state.Session.QuestionAnswers["q1"])

	at = answerAll(m, at)
	effects = m.do(Next{At: at})
	require.Len(t, effects, 1)
	fin := effects[0].(Finalize)
	assert.Equal(t, StatusCompleted, fin.Status)
	assert.Equal(t, StatusCompleted, fin.Session.Status)
	require.NotNil(t, fin.Session.EndedAt)
	assert.Equal(t, PhaseCompleted, m.state.Phase)
	assert.Equal(t, 29, fin.Session.TotalQuestions)
	assert.Len(t, fin.Session.AnsweredQuestions, 29)
}

func TestNavigationPreservesTimer(t *testing.T) {
	m := started(t)
	m.do(GoTo{Step: 3, At: t0.Add(5 * time.Second)})
	assert.Equal(t, 5*time.Second, m.state.InProgress["q1"])
	assert.Empty(t, m.state.Session.QuestionTimes)

	m.do(GoTo{Step: 0, At: t0.Add(8 * time.Second)})
	assert.Equal(t, ModeFirstAttempt, m.state.Active.Mode)
	assert.GreaterOrEqual(t, m.state.Elapsed(t0.Add(8*time.Second)), 5*time.Second)
	assert.Equal(t, 7*time.Second, m.state.Elapsed(t0.Add(10*time.Second)))

	// A clock stepping backwards never loses carried time.
	assert.Equal(t, 5*time.Second, m.state.Elapsed(t0))

	m.do(Select{Answer: "A"})
	m.do(Check{At: t0.Add(12 * time.Second)})
	assert.Equal(t, int64(9000), m.state.Session.QuestionTimes["q1"])
	assert.NotContains(t, m.state.InProgress, "q1")
}

func TestGoToOutOfRangeIgnored(t *testing.T) {
	m := started(t)
	assert.Empty(t, m.do(GoTo{Step: 21, At: t0}))
	assert.Empty(t, m.do(GoTo{Step: -1, At: t0}))
	assert.Empty(t, m.do(Previous{At: t0}))
	assert.Equal(t, 0, m.state.Session.CurrentQuestionStep)
}

func TestMoveSavesDebounced(t *testing.T) {
	m := started(t)
	effects := m.do(GoTo{Step: 2, At: t0.Add(time.Second)})
	require.Len(t, effects, 1)
	assert.False(t, effects[0].(Save).Immediate)
	assert.Equal(t, 2, effects[0].(Save).Session.CurrentQuestionStep)
}

func TestExitAbandons(t *testing.T) {
	m := started(t)
	m.do(Select{Answer: "B"})
	m.do(Check{At: t0.Add(time.Second)})
	effects := m.do(Exit{At: t0.Add(2 * time.Second)})

	require.Len(t, effects, 1)
	fin := effects[0].(Finalize)
	assert.Equal(t, StatusAbandoned, fin.Status)
	assert.Equal(t, PhaseAbandoned, m.state.Phase)
	assert.Nil(t, m.state.Question())

	// Nothing more happens after exit.
	assert.Empty(t, m.do(Exit{At: t0.Add(3 * time.Second)}))
	assert.Empty(t, m.do(Next{At: t0.Add(3 * time.Second)}))
}

func TestLateBatchDiscarded(t *testing.T) {
	m := newMachine(t)
	m.do(Start{SessionID: "s1", Selections: testSelections(), At: t0})
	m.do(Exit{At: t0.Add(time.Second)})
	require.Equal(t, PhaseAbandoned, m.state.Phase)

	effects := m.do(BatchLoaded{SessionID: "s1", At: t0.Add(2 * time.Second), Batch: questionbank.Batch{
		Number: 1, Questions: testQuestions(1, 3), Consumed: 3,
	}})
	assert.Empty(t, effects)
	assert.Equal(t, PhaseAbandoned, m.state.Phase)
	assert.Empty(t, m.state.Batch)

	// A batch for another session is ignored too.
	m.do(Start{SessionID: "s2", Selections: testSelections(), At: t0})
	assert.Empty(t, m.do(BatchLoaded{SessionID: "s1", Batch: questionbank.Batch{Questions: testQuestions(1, 1)}}))
	assert.Equal(t, PhaseLoadingBatch, m.state.Phase)
}

func TestProgressTracked(t *testing.T) {
	m := newMachine(t)
	m.do(Start{SessionID: "s1", Selections: testSelections(), At: t0})
	m.do(BatchProgressed{SessionID: "s1", Progress: questionbank.Progress{Hydrated: 3, Attempted: 4, Dropped: 1, Total: 22}})
	assert.Equal(t, 4, m.state.Progress.Attempted)
	m.do(BatchProgressed{SessionID: "other", Progress: questionbank.Progress{Attempted: 9}})
	assert.Equal(t, 4, m.state.Progress.Attempted)
}

func TestEmptyFirstBatch(t *testing.T) {
	m := newMachine(t)
	m.do(Start{SessionID: "s1", Selections: testSelections(), At: t0})
	effects := m.do(BatchLoaded{SessionID: "s1", At: t0, Batch: questionbank.Batch{}})

	assert.Equal(t, PhaseNoSession, m.state.Phase)
	assert.Equal(t, "No questions match these selections.", m.state.Notice)
	require.Len(t, effects, 1)
	assert.IsType(t, Notify{}, effects[0])
}

func TestAllDroppedBatchWithMoreLoadsAgain(t *testing.T) {
	m := newMachine(t)
	m.do(Start{SessionID: "s1", Selections: testSelections(), At: t0})
	effects := m.do(BatchLoaded{SessionID: "s1", At: t0, Batch: questionbank.Batch{Number: 1, Consumed: 22, HasMore: true}})

	require.Len(t, effects, 1)
	load := effects[0].(LoadBatch)
	assert.Equal(t, 22, load.Consumed)
	assert.Equal(t, PhaseLoadingBatch, m.state.Phase)
}

func TestBatchFailed(t *testing.T) {
	m := newMachine(t)
	m.do(Start{SessionID: "s1", Selections: testSelections(), At: t0})
	m.do(BatchFailed{SessionID: "s1", Err: questionbank.ErrFilter, At: t0})
	assert.Equal(t, PhaseNoSession, m.state.Phase)
	assert.Equal(t, "Could not load questions.", m.state.Notice)

	m = started(t)
	answerAll(m, t0)
	m.do(Next{At: t0.Add(time.Minute)})
	m.do(BatchFailed{SessionID: "s1", Err: questionbank.ErrFilter, At: t0})
	assert.Equal(t, "Could not load questions. Your session is saved; resume to try again.", m.state.Notice)
}

func TestResumeRehydratesAndReviews(t *testing.T) {
	m := started(t)
	m.do(Select{Answer: "B"})
	m.do(Check{At: t0.Add(4 * time.Second)})
	m.do(Next{At: t0.Add(5 * time.Second)})
	saved := effectsOf[Save](m.effects)
	snap := saved[len(saved)-1].Session

	r := newMachine(t)
	effects := r.do(Resume{Session: snap, At: t0.Add(time.Hour)})
	require.Len(t, effects, 1)
	load := effects[0].(LoadBatch)
	assert.True(t, load.Rehydrate)
	assert.Len(t, load.Refs, 21)
	assert.Equal(t, 22, load.Consumed)
	assert.Equal(t, 1, load.Batch)

	r.do(BatchLoaded{SessionID: "s1", At: t0.Add(time.Hour), Batch: questionbank.Batch{
		Number: 1, Questions: testQuestions(1, 21), Consumed: 22, HasMore: true,
	}})
	assert.Equal(t, PhaseAnswering, r.state.Phase)
	assert.Equal(t, 1, r.state.Session.CurrentQuestionStep)
	assert.Equal(t, 1, r.state.Session.CurrentBatch)

	r.do(Previous{At: t0.Add(time.Hour)})
	assert.Equal(t, ModeReview, r.state.Active.Mode)
	assert.Equal(t, "B", r.state.Active.Selected)
	assert.False(t, r.state.Active.Correct)
}

func TestResumeClampsStep(t *testing.T) {
	sess := newSession("s1", testSelections(), t0)
	sess.CurrentQuestionStep = 15
	sess.CurrentBatch = 1
	sess.BatchRefs = refsOf(testQuestions(1, 16))

	m := newMachine(t)
	m.do(Resume{Session: sess, At: t0})
	// Some of the refs no longer hydrate.
	m.do(BatchLoaded{SessionID: "s1", At: t0, Batch: questionbank.Batch{Number: 1, Questions: testQuestions(1, 10)}})
	assert.Equal(t, 9, m.state.Session.CurrentQuestionStep)
}

func TestResumeFindsActiveQuestionByID(t *testing.T) {
	m := newMachine(t)
	m.do(Start{SessionID: "s1", Selections: testSelections(), At: t0})
	m.do(BatchLoaded{SessionID: "s1", At: t0, Batch: questionbank.Batch{
		Number: 1, Questions: testQuestions(1, 5), Consumed: 5,
	}})
	for i := range 2 {
		at := t0.Add(time.Duration(i+1) * time.Second)
		m.do(Select{Answer: "A"})
		m.do(Check{At: at})
		m.do(Next{At: at})
	}
	require.Equal(t, 2, m.state.Session.CurrentQuestionStep)
	saved := effectsOf[Save](m.effects)
	snap := saved[len(saved)-1].Session
	assert.Equal(t, "q3", snap.CurrentQuestionID)

	r := newMachine(t)
	r.do(Resume{Session: snap, At: t0.Add(time.Hour)})
	// q1 no longer hydrates.
	r.do(BatchLoaded{SessionID: "s1", At: t0.Add(time.Hour), Batch: questionbank.Batch{
		Number: 1, Questions: testQuestions(2, 4), Consumed: 5,
	}})
	require.Equal(t, PhaseAnswering, r.state.Phase)
	assert.Equal(t, "q3", r.state.Batch[r.state.Session.CurrentQuestionStep].QuestionID)
	assert.Equal(t, 1, r.state.Session.CurrentQuestionStep)
	assert.Equal(t, refsOf(testQuestions(1, 5)), r.state.Session.BatchRefs)
	assert.Equal(t, 5, r.state.Session.ConsumedRefs)
}

func TestResumeEmptyRehydrationKeepsRecord(t *testing.T) {
	sess := newSession("s1", testSelections(), t0)
	sess.CurrentBatch = 1
	sess.BatchRefs = refsOf(testQuestions(1, 3))
	sess.QuestionAnswers["q1"] = "A"
	sess.QuestionTimes["q1"] = 4000
	sess.CurrentQuestionStep = 1
	sess.CurrentQuestionID = "q2"

	m := newMachine(t)
	m.do(Resume{Session: sess, At: t0})
	effects := m.do(BatchLoaded{SessionID: "s1", At: t0, Batch: questionbank.Batch{Number: 1}})

	assert.Equal(t, PhaseNoSession, m.state.Phase)
	assert.Contains(t, m.state.Notice, "Your session is saved")
	assert.Empty(t, effectsOf[Finalize](effects))
	assert.Empty(t, effectsOf[Save](effects))
	require.Len(t, effectsOf[Notify](effects), 1)

	// The untouched record resumes again.
	effects = m.do(Resume{Session: sess, At: t0.Add(time.Minute)})
	require.Len(t, effects, 1)
	load := effects[0].(LoadBatch)
	assert.True(t, load.Rehydrate)
	assert.Len(t, load.Refs, 3)
}

func TestPhaseAndModeText(t *testing.T) {
	for p := PhaseNoSession; p <= PhaseAbandoned; p++ {
		b, err := p.MarshalText()
		require.NoError(t, err)
		var got Phase
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, p, got)
	}
	for _, mode := range []Mode{ModeFirstAttempt, ModeReview} {
		b, err := mode.MarshalText()
		require.NoError(t, err)
		var got Mode
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, mode, got)
	}

	var v struct {
		Phase Phase `json:"phase"`
		Mode  Mode  `json:"mode"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"phase":"checked","mode":"review"}`), &v))
	assert.Equal(t, PhaseChecked, v.Phase)
	assert.Equal(t, ModeReview, v.Mode)

	var p Phase
	assert.Error(t, p.UnmarshalText([]byte("paused")))
	var mode Mode
	assert.Error(t, mode.UnmarshalText([]byte("")))
}

func TestResumeRejectsTerminal(t *testing.T) {
	sess := newSession("s1", testSelections(), t0)
	sess.Status = StatusCompleted
	m := newMachine(t)
	assert.Empty(t, m.do(Resume{Session: sess, At: t0}))
	assert.Equal(t, PhaseNoSession, m.state.Phase)
}

func TestSummary(t *testing.T) {
	m := started(t)
	m.do(Select{Answer: "B"})
	m.do(Check{At: t0.Add(10 * time.Second)})
	m.do(Next{At: t0.Add(10 * time.Second)})
	m.do(Select{Answer: "A"})
	m.do(Check{At: t0.Add(30 * time.Second)})
	effects := m.do(Exit{At: t0.Add(31 * time.Second)})

	sum := BuildSummary(effects[0].(Finalize).Session)
	assert.Equal(t, StatusAbandoned, sum.Status)
	assert.Equal(t, 2, sum.Answered)
	assert.Equal(t, 1, sum.TotalCorrect)
	assert.InDelta(t, 0.5, sum.Accuracy, 1e-9)
	assert.Equal(t, 30*time.Second, sum.Duration)
	assert.Equal(t, 15*time.Second, sum.AverageTime)
	require.Len(t, sum.SkillResults, 1)
	assert.Equal(t, "H.A.1", sum.SkillResults[0].SkillCd)
	assert.Equal(t, 2, sum.SkillResults[0].Attempted)
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{1499 * time.Millisecond, "0:01"},
		{65 * time.Second, "1:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatElapsed(tt.d))
	}
}
