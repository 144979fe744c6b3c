// Package questionbank talks to the remote SAT/PSAT question bank and
// turns filter results into hydrated batches of questions.
package questionbank

import (
	"context"
	"strings"
)

// QuestionType distinguishes multiple choice from student-produced responses.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "mcq"
	TypeFreeResponse   QuestionType = "spr"
)

// Reference is a lightweight pointer returned by the filter query. Exactly
// one of ExternalID and IBN selects the hydration path.
type Reference struct {
	QuestionID     string `json:"questionId"`
	ExternalID     string `json:"external_id,omitempty"`
	IBN            string `json:"ibn,omitempty"`
	Difficulty     string `json:"difficulty"`
	PrimaryClassCd string `json:"primary_class_cd"`
	SkillCd        string `json:"skill_cd"`
}

// HasExternalID reports whether the reference hydrates through the
// question bank rather than the disclosed item store.
func (r Reference) HasExternalID() bool {
	return r.ExternalID != ""
}

// AnswerOption is one choice of a multiple choice question.
type AnswerOption struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

// Question is a fully hydrated question body.
type Question struct {
	Reference
	Type          QuestionType   `json:"type"`
	Stem          string         `json:"stem"`
	Stimulus      string         `json:"stimulus,omitempty"`
	Options       []AnswerOption `json:"answerOptions,omitempty"`
	CorrectAnswer []string       `json:"correct_answer"`
	Rationale     string         `json:"rationale,omitempty"`
}

// IsFreeResponse reports whether the question expects typed input.
func (q *Question) IsFreeResponse() bool {
	return q.Type == TypeFreeResponse
}

// IsCorrect reports whether answer is one of the accepted answers. Both
// sides are trimmed since the bank's answer keys sometimes carry
// trailing whitespace.
func (q *Question) IsCorrect(answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	for _, c := range q.CorrectAnswer {
		if strings.TrimSpace(c) == answer {
			return true
		}
	}
	return false
}

// FilterRequest is what the filter endpoint understands.
type FilterRequest struct {
	Assessment string
	Subject    string
	Domains    []string
}

// Source is the remote question bank.
type Source interface {
	// Filter returns every reference matching req, in bank order.
	Filter(ctx context.Context, req FilterRequest) ([]Reference, error)

	// Fetch hydrates one reference.
	Fetch(ctx context.Context, ref Reference) (*Question, error)
}
