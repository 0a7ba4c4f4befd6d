// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/research-agent/pkg/types"
)

// NewProviderFromConfig builds the configured provider backend. A
// missing API key yields a nil Provider and no error: the pipeline
// reports that as ErrProviderNotConfigured when research starts,
// before any network call.
func NewProviderFromConfig(ctx context.Context, cfg types.ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	switch cfg.Kind {
	case types.ProviderAnthropic, "":
		client := &http.Client{}
		if cfg.Timeout > 0 {
			client.Timeout = cfg.Timeout
		}
		return &AnthropicProvider{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Client:     client,
			MaxRetries: cfg.MaxRetries,
		}, nil
	case types.ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}
