package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abhisek/satprep/internal/store"
)

// ErrDisabled is returned by New when no provider is configured.
var ErrDisabled = errors.New("no llm provider configured")

// New builds the configured provider wrapped as
// caller → retry → recording → provider, so every attempt is recorded.
func New(ctx context.Context, cfg Config, events store.EventRepo, logger *slog.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base Provider
	var err error
	switch cfg.Provider {
	case "":
		return nil, ErrDisabled
	case ProviderAnthropic:
		base, err = newAnthropic(cfg)
	case ProviderOpenAI, ProviderOpenRouter:
		base, err = newOpenAI(cfg)
	case ProviderGemini:
		base, err = newGemini(ctx, cfg)
	case ProviderStub:
		stub := NewStub()
		stub.Fallback = func(Request) StubReply {
			return StubReply{Content: json.RawMessage(`{"explanation":"No tutor is connected.","steps":[],"keyConcept":"stub"}`)}
		}
		base = stub
	}
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Provider, err)
	}
	return WithRetry(WithRecording(base, events, logger), cfg.Retry), nil
}
