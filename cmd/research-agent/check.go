// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-agent/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Inspect the effective configuration and credentials",
	Long: `Check prints the provider, model, and store settings the research
command would use, and whether a credential for the selected provider
was found. It makes no network calls.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	model := cfg.Provider.Model
	if model == "" {
		model = "(provider default)"
	}
	fmt.Printf("provider:  %s\n", cfg.Provider.Kind)
	fmt.Printf("model:     %s\n", model)
	fmt.Printf("timeout:   %s\n", cfg.Provider.Timeout)
	fmt.Printf("interval:  %s\n", cfg.Scheduler.Interval)

	if cfg.Store.Path != "" {
		fmt.Printf("store:     %s\n", cfg.Store.Path)
	} else {
		fmt.Println("store:     disabled")
	}

	if cfg.Provider.APIKey != "" {
		fmt.Println("credential: present")
		return nil
	}

	fmt.Println("credential: missing")
	switch cfg.Provider.Kind {
	case types.ProviderGemini:
		fmt.Println("add .secrets/gemini-api-key or set provider.api_key in the config file")
	default:
		fmt.Println("add .secrets/anthropic-api-key or set provider.api_key in the config file")
	}
	return fmt.Errorf("no credential configured for provider %q", cfg.Provider.Kind)
}
