// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"

	"google.golang.org/genai"

	"github.com/pdiddy/research-agent/pkg/types"
)

// GeminiProvider calls the Gemini API through the official SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini-backed provider. The API key must
// be non-empty; callers represent a missing credential as a nil
// Provider instead.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Message: err.Error()}
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// Name identifies the backend.
func (g *GeminiProvider) Name() string { return "gemini" }

// Generate sends the prompt pair to Gemini and returns the response
// text and token accounting.
func (g *GeminiProvider) Generate(ctx context.Context, genReq Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens:   int32(genReq.MaxOutputTokens),
		Temperature:       genai.Ptr(float32(genReq.Temperature)),
		SystemInstruction: genai.NewContentFromText(genReq.SystemPrompt, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(genReq.UserPrompt), cfg)
	if err != nil {
		return Response{}, &ProviderError{Provider: g.Name(), Message: err.Error()}
	}

	var usage types.Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return Response{Text: resp.Text(), Usage: usage}, nil
}
