package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/stats"
)

// QuestionView is the presentation of the active question. The answer key
// and rationale are only filled in once the question is checked.
type QuestionView struct {
	QuestionID    string
	Type          questionbank.QuestionType
	Stem          string
	Stimulus      string
	Options       []questionbank.AnswerOption
	SkillCd       string
	Difficulty    string
	Mode          Mode
	Selected      string
	Checked       bool
	IsCorrect     bool
	CorrectAnswer []string
	Rationale     string
	Elapsed       time.Duration
}

// Signals is everything a front end needs to render the engine.
type Signals struct {
	SessionID string
	Status    Status
	Phase     Phase
	Progress  questionbank.Progress
	Saving    bool
	Question  *QuestionView
	Notice    string

	Batch    int
	Step     int
	BatchLen int
	HasMore  bool
	Answered int
	Correct  int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

const defaultStatisticTimeout = 5 * time.Second

// WithBatchSize sets the loader batch size.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithStatisticTimeout bounds each statistics append.
func WithStatisticTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.statTimeout = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine runs the state machine. Every action goes through one mutex,
// effects run in the order Reduce returned them, and batch hydration
// runs on its own goroutine feeding results back as actions.
type Engine struct {
	src       questionbank.Source
	persister *Persister
	sink      stats.Sink
	clock     Clock
	logger    *slog.Logger
	batchSize int

	statTimeout time.Duration

	mu       sync.Mutex
	state    State
	loader   *questionbank.Loader
	loaderID string
	cancel   context.CancelFunc
	onChange func(Signals)

	loads sync.WaitGroup
}

// NewEngine creates an Engine. sink may be nil.
func NewEngine(src questionbank.Source, p *Persister, sink stats.Sink, opts ...EngineOption) *Engine {
	e := &Engine{
		src:       src,
		persister: p,
		sink:      sink,
		clock:     SystemClock,
		logger:    slog.New(slog.DiscardHandler),
		batchSize: questionbank.DefaultBatchSize,
		state:     State{InProgress: map[string]time.Duration{}},

		statTimeout: defaultStatisticTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnChange registers fn to receive the signals after every transition.
// fn runs outside the engine lock and may call back into the engine.
func (e *Engine) OnChange(fn func(Signals)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// State returns a copy of the machine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Signals returns the current signals.
func (e *Engine) Signals() Signals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signalsLocked()
}

// Start begins a fresh session for sel and returns its id. It does nothing
// while another session is live.
func (e *Engine) Start(sel Selections) string {
	id := NewSessionID()
	if sig := e.dispatch(Start{SessionID: id, Selections: sel, At: e.clock.Now()}); sig.SessionID != id {
		return ""
	}
	return id
}

// ResumeCurrent restores the persisted current session. A rejected record
// is removed and its reason is reported as the notice.
func (e *Engine) ResumeCurrent(ctx context.Context) error {
	sess, err := e.persister.Restore(ctx)
	if err != nil {
		e.setNotice(restoreNotice(err))
		return err
	}
	e.dispatch(Resume{Session: sess, At: e.clock.Now()})
	return nil
}

// StartOrResume resumes the persisted session when its selections equal
// sel, and otherwise abandons it into history and starts fresh. It
// reports whether a session was resumed.
func (e *Engine) StartOrResume(ctx context.Context, sel Selections) (bool, error) {
	cur := e.State()
	if cur.Phase.Live() {
		if cur.Session.Selections.Equal(sel) {
			return true, nil
		}
		e.Exit()
	}

	sess, err := e.persister.Restore(ctx)
	switch {
	case err == nil && sess.Selections.Equal(sel):
		e.dispatch(Resume{Session: sess, At: e.clock.Now()})
		return true, nil
	case err == nil:
		if ferr := e.persister.Abandon(ctx, sess, e.clock.Now()); ferr != nil {
			e.logger.Error("abandon previous session", slog.String("session_id", sess.SessionID), slog.Any("error", ferr))
		}
	default:
		var rerr *RestoreError
		if !errors.As(err, &rerr) {
			e.logger.Error("restore session", slog.Any("error", err))
		}
	}

	if e.Start(sel) == "" {
		return false, errors.New("session already running")
	}
	if msg := restoreNotice(err); msg != "" {
		e.setNotice(msg)
	}
	return false, nil
}

// Select records the current answer choice.
func (e *Engine) Select(answer string) {
	e.dispatch(Select{Answer: answer})
}

// Check submits the selected answer.
func (e *Engine) Check() {
	e.dispatch(Check{At: e.clock.Now()})
}

// Next continues past a checked question.
func (e *Engine) Next() {
	e.dispatch(Next{At: e.clock.Now()})
}

// Previous returns to the prior question of the batch.
func (e *Engine) Previous() {
	e.dispatch(Previous{At: e.clock.Now()})
}

// GoTo jumps to step of the loaded batch.
func (e *Engine) GoTo(step int) {
	e.dispatch(GoTo{Step: step, At: e.clock.Now()})
}

// Exit abandons the live session.
func (e *Engine) Exit() {
	e.dispatch(Exit{At: e.clock.Now()})
}

// Wait blocks until in-flight batch loads have delivered their result.
func (e *Engine) Wait() {
	e.loads.Wait()
}

// Close cancels any load, writes the pending snapshot and stops the
// persister's timers.
func (e *Engine) Close(ctx context.Context) {
	e.mu.Lock()
	e.dropLoaderLocked()
	e.mu.Unlock()
	e.loads.Wait()

	e.persister.Flush(ctx)
	e.persister.Stop()
}

// dispatch applies a and returns the signals as of that transition.
func (e *Engine) dispatch(a Action) Signals {
	e.mu.Lock()
	next, effects := Reduce(e.state, a)
	e.state = next
	for _, eff := range effects {
		e.runLocked(eff)
	}
	sig := e.signalsLocked()
	fn := e.onChange
	e.mu.Unlock()

	if fn != nil {
		fn(sig)
	}
	return sig
}

func (e *Engine) setNotice(msg string) {
	e.mu.Lock()
	e.state.Notice = msg
	sig := e.signalsLocked()
	fn := e.onChange
	e.mu.Unlock()

	if fn != nil {
		fn(sig)
	}
}

func (e *Engine) runLocked(eff Effect) {
	ctx := context.Background()
	switch eff := eff.(type) {
	case LoadBatch:
		e.loadLocked(eff)
	case EmitStatistic:
		if e.sink == nil {
			return
		}
		// Runs under the engine lock; a stalled sink must not hold it.
		sctx, cancel := context.WithTimeout(ctx, e.statTimeout)
		defer cancel()
		if err := e.sink.Append(sctx, eff.Record); err != nil {
			e.logger.Error("emit statistic",
				slog.String("session_id", eff.Record.SessionID),
				slog.String("question_id", eff.Record.QuestionID),
				slog.Any("error", err),
			)
		}
	case Save:
		if eff.Immediate {
			_ = e.persister.Save(ctx, eff.Session)
			return
		}
		e.persister.SaveDebounced(eff.Session)
	case Finalize:
		if e.loaderID == eff.Session.SessionID {
			e.dropLoaderLocked()
		}
		_ = e.persister.Finalize(ctx, eff.Session)
	case Notify:
		e.logger.Info("session notice", slog.String("message", eff.Message))
	}
}

// loadLocked starts hydration for eff on a goroutine.
func (e *Engine) loadLocked(eff LoadBatch) {
	if e.loaderID != eff.SessionID || e.loader == nil {
		e.dropLoaderLocked()
		e.loader = questionbank.NewLoader(e.src, eff.Selections.LoaderSelection(),
			questionbank.WithBatchSize(e.batchSize),
			questionbank.WithSeed(eff.SessionID),
			questionbank.WithLogger(e.logger),
		)
		e.loader.Restore(eff.Consumed, eff.Batch)
		e.loaderID = eff.SessionID
	}
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	loader := e.loader
	id := eff.SessionID

	e.loads.Add(1)
	go func() {
		defer e.loads.Done()

		onProgress := func(p questionbank.Progress) {
			if ctx.Err() == nil {
				e.dispatch(BatchProgressed{SessionID: id, Progress: p})
			}
		}

		var b questionbank.Batch
		var err error
		if eff.Rehydrate {
			b, err = loader.Rehydrate(ctx, eff.Refs, onProgress)
		} else {
			b, err = loader.LoadNextBatch(ctx, onProgress)
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			e.logger.Error("load batch", slog.String("session_id", id), slog.Any("error", err))
			e.dispatch(BatchFailed{SessionID: id, Err: err, At: e.clock.Now()})
			return
		}
		e.logger.Debug("batch loaded",
			slog.String("session_id", id),
			slog.Int("batch", b.Number),
			slog.Int("questions", len(b.Questions)),
			slog.Int("dropped", len(b.Dropped)),
		)
		e.dispatch(BatchLoaded{SessionID: id, Batch: b, At: e.clock.Now()})
	}()
}

func (e *Engine) dropLoaderLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.loader = nil
	e.loaderID = ""
}

func (e *Engine) signalsLocked() Signals {
	s := e.state
	sig := Signals{
		SessionID: s.Session.SessionID,
		Status:    s.Session.Status,
		Phase:     s.Phase,
		Progress:  s.Progress,
		Saving:    e.persister.Saving(),
		Notice:    s.Notice,
		Batch:     s.Session.CurrentBatch,
		Step:      s.Session.CurrentQuestionStep,
		BatchLen:  len(s.Batch),
		HasMore:   s.HasMore,
		Answered:  len(s.Session.QuestionAnswers),
		Correct:   s.Session.Correct(),
	}
	if q := s.Question(); q != nil {
		v := &QuestionView{
			QuestionID: q.QuestionID,
			Type:       q.Type,
			Stem:       q.Stem,
			Stimulus:   q.Stimulus,
			Options:    slices.Clone(q.Options),
			SkillCd:    q.SkillCd,
			Difficulty: q.Difficulty,
			Mode:       s.Active.Mode,
			Selected:   s.Active.Selected,
			Elapsed:    s.Elapsed(e.clock.Now()),
		}
		if s.Phase == PhaseChecked {
			v.Checked = true
			v.IsCorrect = s.Active.Correct
			v.CorrectAnswer = slices.Clone(q.CorrectAnswer)
			v.Rationale = q.Rationale
		}
		sig.Question = v
	}
	return sig
}

// ended returns a terminal copy of s.
func (s Session) ended(status Status, at time.Time) Session {
	c := s.Clone()
	c.Status = status
	c.UpdatedAt = at
	c.EndedAt = &at
	return c
}

func restoreNotice(err error) string {
	var rerr *RestoreError
	if !errors.As(err, &rerr) || rerr.Reason == ReasonEmpty {
		return ""
	}
	return rerr.Reason.Message()
}
