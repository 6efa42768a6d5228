// Package provider selects the upstream adapter named in the configuration.
package provider

import (
	"fmt"
	"net/http"

	"kopiloka-assistant/internal/config"
	"kopiloka-assistant/internal/credential"
	"kopiloka-assistant/internal/integrations/anthropic"
	"kopiloka-assistant/internal/integrations/gemini"
	"kopiloka-assistant/internal/integrations/openai"
	"kopiloka-assistant/internal/usecase"
)

// New returns the LLM client for cfg.Provider. Unknown providers are a
// configuration error.
func New(cfg config.Config, key credential.Source) (usecase.LLMClient, error) {
	if key == nil {
		return nil, fmt.Errorf("provider: %w", credential.ErrMissing)
	}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	var (
		llm usecase.LLMClient
		err error
	)
	switch cfg.Provider {
	case config.ProviderGemini, "":
		llm, err = gemini.NewClient(key,
			gemini.WithBaseURL(cfg.BaseURL),
			gemini.WithModel(cfg.Model),
			gemini.WithHTTPClient(httpClient),
		)
	case config.ProviderOpenAI:
		llm, err = openai.NewClient(key,
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithModel(cfg.Model),
			openai.WithHTTPClient(httpClient),
		)
	case config.ProviderAnthropic:
		llm, err = anthropic.NewClient(key,
			anthropic.WithBaseURL(cfg.BaseURL),
			anthropic.WithModel(cfg.Model),
			anthropic.WithHTTPClient(httpClient),
		)
	default:
		return nil, fmt.Errorf("provider: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return llm, nil
}
