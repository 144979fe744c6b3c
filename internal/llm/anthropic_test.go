package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *anthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := newAnthropic(Config{APIKey: "test-key", Model: "claude-haiku"},
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	if err != nil {
		t.Fatalf("newAnthropic: %v", err)
	}
	return p
}

func anthropicReply(text, stop string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": text}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": stop,
			"usage":       map[string]any{"input_tokens": 120, "output_tokens": 48},
		})
	}
}

func anthropicError(status int, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": kind, "message": kind},
		})
	}
}

func TestAnthropicGenerate(t *testing.T) {
	p := newTestAnthropic(t, anthropicReply(`{"explanation":"Subtract 3 from both sides.","steps":["x = 4"],"keyConcept":"linear equations"}`, "end_turn"))

	req := UserPrompt("You explain SAT questions.", "Explain q1.")
	req.MaxTokens = 512
	req.Schema = explanationTestSchema()
	resp, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Usage.InputTokens != 120 || resp.Usage.Total() != 168 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
	if resp.StopReason != StopEnd {
		t.Fatalf("stop reason = %q", resp.StopReason)
	}
	if p.ModelID() != "claude-haiku-4-5-20251001" {
		t.Fatalf("alias not resolved: %s", p.ModelID())
	}
}

func TestAnthropicTruncatedStructuredOutput(t *testing.T) {
	p := newTestAnthropic(t, anthropicReply(`{"explanation":"Subtract`, "max_tokens"))
	req := UserPrompt("", "Explain q1.")
	req.MaxTokens = 8
	req.Schema = explanationTestSchema()

	_, err := p.Generate(context.Background(), req)
	var tr *TruncatedError
	if !errors.As(err, &tr) {
		t.Fatalf("expected TruncatedError, got %T (%v)", err, err)
	}
}

func TestAnthropicErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   string
		check  func(error) bool
	}{
		{"rate limit", http.StatusTooManyRequests, "rate_limit_error", func(err error) bool {
			var e *RateLimitError
			return errors.As(err, &e)
		}},
		{"server error", http.StatusInternalServerError, "api_error", func(err error) bool {
			var e *UnavailableError
			return errors.As(err, &e)
		}},
		{"bad request", http.StatusBadRequest, "invalid_request_error", func(err error) bool {
			return !retryable(err)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestAnthropic(t, anthropicError(tt.status, tt.kind))
			req := UserPrompt("", "test")
			req.MaxTokens = 16
			_, err := p.Generate(context.Background(), req)
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %T (%v)", err, err)
			}
		})
	}
}
