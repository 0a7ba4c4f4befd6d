// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-agent CLI.
// research drives the full session lifecycle; check inspects the
// configured provider and credentials.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-agent/internal/secrets"
	"github.com/pdiddy/research-agent/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, otherwise the secret value
// for key if one was loaded.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the research-agent CLI.
var rootCmd = &cobra.Command{
	Use:   "research-agent",
	Short: "AI-driven research sessions with cited, structured reports",
	Long: `research-agent runs deep-research sessions against an AI provider. A
session takes a question, streams progress while the provider works, and
produces a structured report with findings, cited sources, and knowledge
gaps. Reports render as markdown, JSON, or YAML, and sessions can be
persisted to a local SQLite store.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-agent.yaml or ~/.config/research-agent/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-agent"))
		}
	}

	viper.SetDefault("provider.kind", string(types.ProviderAnthropic))
	viper.SetDefault("provider.timeout", "120s")
	viper.SetDefault("scheduler.interval", "2s")

	viper.SetEnvPrefix("RESEARCH_AGENT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the effective configuration from the config
// file, environment, and loaded secrets.
func loadConfig() types.Config {
	kind := types.ProviderKind(viper.GetString("provider.kind"))

	secretKey := secrets.AnthropicKey
	if kind == types.ProviderGemini {
		secretKey = secrets.GeminiKey
	}

	return types.Config{
		Provider: types.ProviderConfig{
			Kind:        kind,
			Model:       viper.GetString("provider.model"),
			APIKey:      secretDefault(secretKey, viper.GetString("provider.api_key")),
			Timeout:     viper.GetDuration("provider.timeout"),
			MaxRetries:  viper.GetInt("provider.max_retries"),
			Temperature: viper.GetFloat64("provider.temperature"),
		},
		Scheduler: types.SchedulerConfig{
			Interval: durationDefault(viper.GetDuration("scheduler.interval"), 2*time.Second),
		},
		Store: types.StoreConfig{
			Path: viper.GetString("store.path"),
		},
	}
}

func durationDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
