// Package tutor asks the configured LLM to walk a student through a
// question they have just checked.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/abhisek/satprep/internal/llm"
)

// ErrNoQuestion is returned when the input carries no answerable question.
var ErrNoQuestion = errors.New("tutor: question has no answer key")

// Service generates explanations. Results are cached per question and
// answer so asking twice costs one request.
type Service struct {
	provider llm.Provider
	cfg      Config

	mu    sync.Mutex
	cache map[string]*Explanation
}

// NewService creates an explanation service.
func NewService(provider llm.Provider, cfg Config) *Service {
	return &Service{provider: provider, cfg: cfg, cache: map[string]*Explanation{}}
}

// Explain returns the walkthrough for in.
func (s *Service) Explain(ctx context.Context, in Input) (*Explanation, error) {
	if in.Question == nil || len(in.Question.CorrectAnswer) == 0 {
		return nil, ErrNoQuestion
	}
	key := in.Question.QuestionID + "\x00" + strings.TrimSpace(in.Answer)

	s.mu.Lock()
	if e, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	e, err := s.generate(ctx, in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = e
	s.mu.Unlock()
	return e, nil
}

func (s *Service) generate(ctx context.Context, in Input) (*Explanation, error) {
	ctx = llm.WithPurpose(ctx, "explain")

	req := llm.Request{
		System: explainSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildExplainUserMessage(in)},
		},
		Schema:      ExplanationSchema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}

	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("explanation generation: %w", err)
	}

	out, err := llm.Decode[Explanation](resp)
	if err != nil {
		return nil, fmt.Errorf("parse explanation response: %w", err)
	}
	out.QuestionID = in.Question.QuestionID
	if out.Steps == nil {
		out.Steps = []string{}
	}
	return &out, nil
}
