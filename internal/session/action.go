package session

import (
	"time"

	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/stats"
)

// Action is an input to Reduce.
type Action interface {
	isAction()
}

// Start begins a fresh session for Selections.
type Start struct {
	SessionID  string
	Selections Selections
	At         time.Time
}

// Resume seeds the machine with a validated persisted session. The batch
// is hydrated again before answering continues.
type Resume struct {
	Session Session
	At      time.Time
}

// BatchProgressed reports hydration progress of the pending batch.
type BatchProgressed struct {
	SessionID string
	Progress  questionbank.Progress
}

// BatchLoaded delivers a hydrated batch.
type BatchLoaded struct {
	SessionID string
	Batch     questionbank.Batch
	At        time.Time
}

// BatchFailed reports that no batch could be produced.
type BatchFailed struct {
	SessionID string
	Err       error
	At        time.Time
}

// Select records the current choice or typed answer.
type Select struct {
	Answer string
}

// Check submits the selected answer.
type Check struct {
	At time.Time
}

// Next continues past a checked question.
type Next struct {
	At time.Time
}

// Previous moves to the prior question of the batch.
type Previous struct {
	At time.Time
}

// GoTo jumps to a step of the loaded batch.
type GoTo struct {
	Step int
	At   time.Time
}

// Exit abandons the session.
type Exit struct {
	At time.Time
}

func (Start) isAction()           {}
func (Resume) isAction()          {}
func (BatchProgressed) isAction() {}
func (BatchLoaded) isAction()     {}
func (BatchFailed) isAction()     {}
func (Select) isAction()          {}
func (Check) isAction()           {}
func (Next) isAction()            {}
func (Previous) isAction()        {}
func (GoTo) isAction()            {}
func (Exit) isAction()            {}

// Effect is an output of Reduce, executed by the Engine in order.
type Effect interface {
	isEffect()
}

// LoadBatch asks for the next batch, or for Refs to be hydrated again
// when Rehydrate is set.
type LoadBatch struct {
	SessionID  string
	Selections Selections
	Rehydrate  bool
	Refs       []questionbank.Reference
	Consumed   int
	Batch      int
}

// EmitStatistic appends one record to the statistics sink.
type EmitStatistic struct {
	Record stats.Record
}

// Save persists a snapshot. Immediate saves bypass the debounce.
type Save struct {
	Session   Session
	Immediate bool
}

// Finalize moves a terminal snapshot into history and clears the
// current slot.
type Finalize struct {
	Session Session
	Status  Status
}

// Notify surfaces a non-blocking message to the user.
type Notify struct {
	Message string
}

func (LoadBatch) isEffect()     {}
func (EmitStatistic) isEffect() {}
func (Save) isEffect()          {}
func (Finalize) isEffect()      {}
func (Notify) isEffect()        {}
