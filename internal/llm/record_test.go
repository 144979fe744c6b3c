package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/abhisek/satprep/internal/store"
)

func TestRecordingAppendsEvents(t *testing.T) {
	repo := store.NewMemoryRepo()
	stub := NewStub(
		StubReply{Content: json.RawMessage(`{"a":1}`), Usage: Usage{InputTokens: 10, OutputTokens: 4}},
		StubReply{Err: errors.New("boom")},
	)
	p := WithRecording(stub, repo, nil)
	ctx := WithPurpose(context.Background(), "explain")

	if _, err := p.Generate(ctx, Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Generate(ctx, Request{}); err == nil {
		t.Fatal("expected error")
	}

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// Newest first.
	if events[0].Success || events[0].ErrorMessage != "boom" {
		t.Fatalf("unexpected failure event: %+v", events[0])
	}
	ok := events[1]
	if !ok.Success || ok.InputTokens != 10 || ok.Purpose != "explain" || ok.Provider != ProviderStub {
		t.Fatalf("unexpected success event: %+v", ok)
	}
}

func TestRecordingSurvivesStoreFailure(t *testing.T) {
	repo := store.NewMemoryRepo()
	repo.SetWriteHook(func(string) error { return errors.New("read-only") })
	p := WithRecording(NewStub(okReply), repo, nil)

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("recording failure leaked: %v", err)
	}
}

func TestPurposeDefault(t *testing.T) {
	if got := PurposeFrom(context.Background()); got != "unknown" {
		t.Fatalf("PurposeFrom = %q", got)
	}
}
