// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/pkg/types"
)

// anthropicAPIURL is the Messages API endpoint. Package-level var for
// test substitution.
var anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	APIKey     string
	Model      string
	Client     *http.Client
	MaxRetries int
}

// anthropicRequest is the request body for the Messages API.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

// anthropicMessage is a single message in the conversation.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the response body from the Messages API.
type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Usage   anthropicUsage     `json:"usage"`
	Error   *anthropicAPIError `json:"error,omitempty"`
}

// anthropicUsage is the token accounting block of a response.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// anthropicContent is a content block in the response.
type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// anthropicAPIError is the error payload on non-success responses.
type anthropicAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Name identifies the backend.
func (a *AnthropicProvider) Name() string { return "anthropic" }

// Generate sends the prompt pair to the Messages API and returns the
// concatenated text blocks from the response along with its token
// accounting.
func (a *AnthropicProvider) Generate(ctx context.Context, genReq Request) (Response, error) {
	reqBody := anthropicRequest{
		Model:       a.Model,
		MaxTokens:   genReq.MaxOutputTokens,
		Temperature: genReq.Temperature,
		System:      genReq.SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: genReq.UserPrompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, a.MaxRetries)
	if err != nil {
		return Response{}, &ProviderError{Provider: a.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Response{}, &ProviderError{
			Provider:   a.Name(),
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(body),
		}
	}

	var aResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&aResp); err != nil {
		return Response{}, &ProviderError{Provider: a.Name(), Message: fmt.Sprintf("decoding response: %v", err)}
	}

	var b strings.Builder
	for _, block := range aResp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return Response{
		Text: b.String(),
		Usage: types.Usage{
			InputTokens:  aResp.Usage.InputTokens,
			OutputTokens: aResp.Usage.OutputTokens,
		},
	}, nil
}

// apiErrorMessage extracts the provider's message from an error body,
// falling back to the raw body text.
func apiErrorMessage(body []byte) string {
	var aResp anthropicResponse
	if err := json.Unmarshal(body, &aResp); err == nil && aResp.Error != nil && aResp.Error.Message != "" {
		return aResp.Error.Message
	}
	return strings.TrimSpace(string(body))
}
