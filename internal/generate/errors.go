// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline failure classes.
var (
	// ErrEmptyQuestion rejects empty or whitespace-only questions
	// before any external call is made.
	ErrEmptyQuestion = errors.New("research question is empty")

	// ErrProviderNotConfigured indicates no provider credential is
	// available. It is detected before any network I/O.
	ErrProviderNotConfigured = errors.New("no generative-text provider configured")

	// ErrEmptyResponse indicates the provider call succeeded but
	// yielded no text.
	ErrEmptyResponse = errors.New("provider returned an empty response")
)

// ProviderError wraps a failed provider call: a non-success status,
// timeout, or transport failure.
type ProviderError struct {
	// Provider names the backend that failed.
	Provider string

	// StatusCode is the HTTP status, when one was received.
	StatusCode int

	// Message is the provider's error message, when available.
	Message string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider returned %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider call failed: %s", e.Provider, e.Message)
}
