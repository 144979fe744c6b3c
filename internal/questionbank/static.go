package questionbank

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// Static serves questions from memory. It backs offline practice from a
// saved bank file.
type Static struct {
	questions []*Question
	byID      map[string]*Question
}

// NewStatic returns a Static over qs, in order.
func NewStatic(qs []*Question) *Static {
	s := &Static{byID: make(map[string]*Question, len(qs))}
	for _, q := range qs {
		if _, dup := s.byID[q.QuestionID]; dup {
			continue
		}
		s.questions = append(s.questions, q)
		s.byID[q.QuestionID] = q
	}
	return s
}

// LoadStatic reads a JSON array of questions.
func LoadStatic(r io.Reader) (*Static, error) {
	var qs []*Question
	if err := json.NewDecoder(r).Decode(&qs); err != nil {
		return nil, fmt.Errorf("decode question file: %w", err)
	}
	return NewStatic(qs), nil
}

// Filter returns the references whose domain is in req.Domains.
func (s *Static) Filter(ctx context.Context, req FilterRequest) ([]Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var refs []Reference
	for _, q := range s.questions {
		if len(req.Domains) == 0 || slices.Contains(req.Domains, q.PrimaryClassCd) {
			refs = append(refs, q.Reference)
		}
	}
	return refs, nil
}

// Fetch returns a copy of the question ref points at.
func (s *Static) Fetch(ctx context.Context, ref Reference) (*Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, ok := s.byID[ref.QuestionID]
	if !ok {
		return nil, fmt.Errorf("question %s not in file", ref.QuestionID)
	}
	c := *q
	c.Options = slices.Clone(q.Options)
	c.CorrectAnswer = slices.Clone(q.CorrectAnswer)
	return &c, nil
}
