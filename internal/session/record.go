package session

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/satprep/internal/questionbank"
)

// SchemaVersion is written into every persisted session.
const SchemaVersion = "v1.0.0"

// Status is the lifecycle state of a persisted session.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusAbandoned  Status = "ABANDONED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// AnsweredQuestion is the per-question detail kept for every check.
type AnsweredQuestion struct {
	QuestionID     string `json:"questionId"`
	Answer         string `json:"answer"`
	TimeMs         int64  `json:"timeMs"`
	IsCorrect      bool   `json:"isCorrect"`
	SkillCd        string `json:"skillCd,omitempty"`
	PrimaryClassCd string `json:"primaryClassCd,omitempty"`
	Difficulty     string `json:"difficulty,omitempty"`
	ExternalID     string `json:"externalId,omitempty"`
	IBN            string `json:"ibn,omitempty"`
}

// Session is the unit of persistence and resumption.
type Session struct {
	SchemaVersion string     `json:"schemaVersion"`
	SessionID     string     `json:"sessionId"`
	Status        Status     `json:"status"`
	Selections    Selections `json:"practiceSelections"`

	// CurrentQuestionStep indexes the currently loaded batch.
	CurrentQuestionStep int `json:"currentQuestionStep"`

	// CurrentQuestionID names the question at CurrentQuestionStep. Resume
	// locates the step by id when it is set.
	CurrentQuestionID string `json:"currentQuestionId,omitempty"`

	// CurrentBatch is the 1-based number of the loaded batch.
	CurrentBatch int `json:"currentBatch"`

	// BatchRefs lists the references of the loaded batch so a resumed
	// session can hydrate the same questions again.
	BatchRefs []questionbank.Reference `json:"batchRefs"`

	// ConsumedRefs counts filter references consumed by completed batches.
	ConsumedRefs int `json:"consumedRefs"`

	QuestionAnswers map[string]string `json:"questionAnswers"`
	QuestionTimes   map[string]int64  `json:"questionTimes"` // milliseconds

	// Derived on every snapshot.
	TotalQuestions         int                `json:"totalQuestions"`
	AnsweredQuestions      []AnsweredQuestion `json:"answeredQuestions"`
	AverageTimePerQuestion int64              `json:"averageTimePerQuestion"`
	TotalTimeSpent         int64              `json:"totalTimeSpent"`

	StartedAt time.Time  `json:"startedAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// NewSessionID returns a fresh opaque session id.
func NewSessionID() string {
	return uuid.NewString()
}

// newSession creates an IN_PROGRESS session.
func newSession(id string, sel Selections, at time.Time) Session {
	return Session{
		SchemaVersion:     SchemaVersion,
		SessionID:         id,
		Status:            StatusInProgress,
		Selections:        sel.clone(),
		BatchRefs:         []questionbank.Reference{},
		QuestionAnswers:   map[string]string{},
		QuestionTimes:     map[string]int64{},
		AnsweredQuestions: []AnsweredQuestion{},
		StartedAt:         at,
		UpdatedAt:         at,
	}
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	s.Selections = s.Selections.clone()
	s.BatchRefs = slices.Clone(s.BatchRefs)
	s.QuestionAnswers = maps.Clone(s.QuestionAnswers)
	s.QuestionTimes = maps.Clone(s.QuestionTimes)
	s.AnsweredQuestions = slices.Clone(s.AnsweredQuestions)
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	return s
}

// Detail returns the answered-question detail for id.
func (s Session) Detail(id string) (AnsweredQuestion, bool) {
	for _, a := range s.AnsweredQuestions {
		if a.QuestionID == id {
			return a, true
		}
	}
	return AnsweredQuestion{}, false
}

// recompute refreshes the derived aggregates. batchIDs are the question
// ids of the loaded batch.
func (s *Session) recompute(batchIDs []string) {
	ids := make(map[string]bool, len(s.QuestionAnswers)+len(batchIDs))
	for id := range s.QuestionAnswers {
		ids[id] = true
	}
	for _, id := range batchIDs {
		ids[id] = true
	}
	s.TotalQuestions = len(ids)

	var total int64
	for _, ms := range s.QuestionTimes {
		total += ms
	}
	s.TotalTimeSpent = total
	s.AverageTimePerQuestion = 0
	if n := len(s.QuestionTimes); n > 0 {
		s.AverageTimePerQuestion = total / int64(n)
	}

	// Detail rows mirror the authoritative maps.
	for i := range s.AnsweredQuestions {
		a := &s.AnsweredQuestions[i]
		a.Answer = s.QuestionAnswers[a.QuestionID]
		a.TimeMs = s.QuestionTimes[a.QuestionID]
	}
}

// Correct counts correctly answered questions.
func (s Session) Correct() int {
	n := 0
	for _, a := range s.AnsweredQuestions {
		if a.IsCorrect {
			n++
		}
	}
	return n
}
