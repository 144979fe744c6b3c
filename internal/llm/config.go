package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted in Config.Provider.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderStub       = "stub"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// Config selects one provider. An empty Provider disables the tutor.
type Config struct {
	Provider string
	APIKey   string
	Model    string // alias or full model id
	BaseURL  string // OpenAI-compatible endpoints only

	Timeout time.Duration // per explanation, retries included
	Retry   RetryPolicy
}

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultConfig returns a disabled Config with default timings.
func DefaultConfig() Config {
	return Config{
		Timeout: 45 * time.Second,
		Retry: RetryPolicy{
			Attempts: 3,
			Initial:  time.Second,
			Max:      8 * time.Second,
		},
	}
}

// ConfigFromEnv reads SATPREP_LLM_* variables. Without an explicit
// provider it falls back to the first vendor key found in the
// environment.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Provider = os.Getenv("SATPREP_LLM_PROVIDER")
	cfg.APIKey = os.Getenv("SATPREP_LLM_API_KEY")
	cfg.Model = os.Getenv("SATPREP_LLM_MODEL")
	cfg.BaseURL = os.Getenv("SATPREP_LLM_BASE_URL")
	if v := os.Getenv("SATPREP_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}

	vendorKeys := []struct{ provider, env string }{
		{ProviderAnthropic, "ANTHROPIC_API_KEY"},
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderGemini, "GEMINI_API_KEY"},
		{ProviderOpenRouter, "OPENROUTER_API_KEY"},
	}
	for _, vk := range vendorKeys {
		key := os.Getenv(vk.env)
		if key == "" {
			continue
		}
		if cfg.Provider == "" {
			cfg.Provider = vk.provider
		}
		if cfg.APIKey == "" && cfg.Provider == vk.provider {
			cfg.APIKey = key
		}
	}

	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}
	if cfg.Provider == ProviderOpenRouter && cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterURL
	}
	return cfg
}

// Enabled reports whether a provider is configured.
func (c Config) Enabled() bool {
	return c.Provider != ""
}

// Validate checks that the selected provider can be constructed.
func (c Config) Validate() error {
	switch c.Provider {
	case "", ProviderStub:
		return nil
	case ProviderAnthropic, ProviderOpenAI, ProviderOpenRouter, ProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("SATPREP_LLM_API_KEY is required for the %s provider", c.Provider)
		}
		return nil
	}
	return fmt.Errorf("unknown llm provider %q", c.Provider)
}
