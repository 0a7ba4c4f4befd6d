// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ProviderKind selects which generative-text provider to use.
type ProviderKind string

const (
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderGemini    ProviderKind = "gemini"
)

// ProviderConfig holds settings for the generative-text provider.
type ProviderConfig struct {
	// Kind selects the provider backend: anthropic or gemini.
	Kind ProviderKind `json:"kind" yaml:"kind"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the provider API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout bounds a single provider call, including calls abandoned
	// by a session restart (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the number of transport-level retries on HTTP 429.
	// Zero means a single attempt, which is the default: retry policy
	// belongs to the caller, not the generation pipeline.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Temperature is the sampling temperature for generation.
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// SchedulerConfig holds settings for the progress scheduler.
type SchedulerConfig struct {
	// Interval is the delay between consecutive progress events
	// (default 2s). The schedule is illustrative and is not
	// synchronized to actual pipeline progress.
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// StoreConfig holds settings for the optional persistent store.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config groups all settings for the orchestrator.
type Config struct {
	Provider  ProviderConfig  `json:"provider" yaml:"provider"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Store     StoreConfig     `json:"store" yaml:"store"`
}
