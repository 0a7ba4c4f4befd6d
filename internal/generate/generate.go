// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate turns a research question into raw provider text.
// The pipeline selects depth-specific generation parameters, renders a
// prompt pair, and makes exactly one call to the injected provider.
// Retry policy belongs to the caller.
package generate

import (
	"context"
	"strings"
	"time"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Request is the provider boundary: a prompt pair plus generation
// parameters.
type Request struct {
	SystemPrompt    string
	UserPrompt      string
	MaxOutputTokens int
	Temperature     float64
}

// Response is a provider result: raw text, which may or may not be
// the JSON the prompt asked for, plus the provider's token accounting.
type Response struct {
	Text  string
	Usage types.Usage
}

// Provider abstracts the external generative-text service so tests can
// supply a mock.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// depthParams are the per-depth generation parameters: a token budget
// and target finding/source counts, wider for deeper research.
type depthParams struct {
	maxTokens    int
	findingCount int
	sourceCount  int
}

var depthTable = map[types.Depth]depthParams{
	types.DepthQuick:         {maxTokens: 2048, findingCount: 3, sourceCount: 5},
	types.DepthStandard:      {maxTokens: 4096, findingCount: 5, sourceCount: 8},
	types.DepthComprehensive: {maxTokens: 8192, findingCount: 8, sourceCount: 12},
}

const defaultTimeout = 120 * time.Second

// Pipeline generates raw report text for a question. The provider is
// an explicit dependency; a nil provider means no credential was
// available and is reported before any network call.
type Pipeline struct {
	provider    Provider
	timeout     time.Duration
	temperature float64
}

// NewPipeline builds a Pipeline around provider, which may be nil when
// no credential is configured.
func NewPipeline(provider Provider, cfg types.ProviderConfig) *Pipeline {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	return &Pipeline{
		provider:    provider,
		timeout:     timeout,
		temperature: temperature,
	}
}

// Generate issues a single provider call for the question at the given
// depth and returns the raw response. Invalid depths fall back to
// standard. The call is bounded by the configured timeout, which also
// caps how long an abandoned call can linger after a session restart.
func (p *Pipeline) Generate(ctx context.Context, questionText string, depth types.Depth) (Response, error) {
	if strings.TrimSpace(questionText) == "" {
		return Response{}, ErrEmptyQuestion
	}
	if p.provider == nil {
		return Response{}, ErrProviderNotConfigured
	}

	params := depthTable[types.NormalizeDepth(string(depth))]

	userPrompt, err := renderUserPrompt(questionText, params)
	if err != nil {
		return Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.provider.Generate(ctx, Request{
		SystemPrompt:    systemPrompt,
		UserPrompt:      userPrompt,
		MaxOutputTokens: params.maxTokens,
		Temperature:     p.temperature,
	})
	if err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return Response{}, ErrEmptyResponse
	}
	return resp, nil
}
