package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// StubReply is one scripted outcome of a Stub.
type StubReply struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// Stub replays scripted replies in order and records every request. It
// backs tests and the "stub" provider.
type Stub struct {
	mu      sync.Mutex
	replies []StubReply
	calls   []Request

	// Fallback answers once the script runs out. Without it an empty
	// script reports the provider as unavailable.
	Fallback func(Request) StubReply
}

// NewStub returns a Stub with the given script.
func NewStub(replies ...StubReply) *Stub {
	return &Stub{replies: replies}
}

func (s *Stub) Name() string    { return ProviderStub }
func (s *Stub) ModelID() string { return "stub" }

func (s *Stub) Generate(_ context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	var r StubReply
	switch {
	case len(s.replies) > 0:
		r = s.replies[0]
		s.replies = s.replies[1:]
	case s.Fallback != nil:
		r = s.Fallback(req)
	default:
		s.mu.Unlock()
		return nil, &UnavailableError{}
	}
	s.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return finish(req, r.Content, r.Usage, "stub", StopEnd)
}

// Push appends a reply to the script.
func (s *Stub) Push(r StubReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, r)
}

// Calls returns the requests received so far.
func (s *Stub) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}
