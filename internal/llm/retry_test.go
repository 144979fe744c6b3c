package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{Attempts: 3, Initial: time.Millisecond, Max: 5 * time.Millisecond}
}

var okReply = StubReply{Content: json.RawMessage(`{"ok":true}`)}

func TestRetry(t *testing.T) {
	down := StubReply{Err: &UnavailableError{Err: errors.New("down")}}
	garbled := StubReply{Err: &InvalidOutputError{Err: errors.New("garbled")}}

	tests := []struct {
		name      string
		script    []StubReply
		wantErr   bool
		wantCalls int
	}{
		{"first attempt", []StubReply{okReply}, false, 1},
		{"transient then ok", []StubReply{down, okReply}, false, 2},
		{"rate limited then ok", []StubReply{{Err: &RateLimitError{RetryAfter: time.Millisecond}}, okReply}, false, 2},
		{"all fail", []StubReply{down, down, down, okReply}, true, 3},
		{"invalid retried once", []StubReply{garbled, garbled, okReply}, true, 2},
		{"truncation not retried", []StubReply{{Err: &TruncatedError{}}, okReply}, true, 1},
		{"rejection not retried", []StubReply{{Err: errors.New("llm request rejected (400)")}, okReply}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := NewStub(tt.script...)
			_, err := WithRetry(stub, fastRetry()).Generate(context.Background(), Request{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := len(stub.Calls()); got != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	stub := NewStub(StubReply{Err: &UnavailableError{}}, okReply)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := WithRetry(stub, RetryPolicy{Attempts: 3, Initial: time.Hour})
	_, err := p.Generate(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetryWaitCapped(t *testing.T) {
	r := &retrying{policy: RetryPolicy{Attempts: 10, Initial: time.Second, Max: 4 * time.Second}}
	for attempt := range 8 {
		if d := r.wait(attempt, errors.New("x")); d > 5*time.Second {
			t.Fatalf("attempt %d waited %s", attempt, d)
		}
	}
	if d := r.wait(0, &RateLimitError{RetryAfter: 7 * time.Second}); d != 7*time.Second {
		t.Fatalf("retry-after ignored: %s", d)
	}
}
