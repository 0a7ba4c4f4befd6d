// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-agent/internal/generate"
	"github.com/pdiddy/research-agent/internal/progress"
	"github.com/pdiddy/research-agent/internal/quality"
	"github.com/pdiddy/research-agent/internal/session"
	"github.com/pdiddy/research-agent/internal/store"
	"github.com/pdiddy/research-agent/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [question]",
	Short: "Run a research session and render the report",
	Long: `Research submits a question to the configured AI provider, streams
progress to stderr while the provider works, and renders the finished
report. Follow-up questions run in the same session and share its
conversation history.`,
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().String("depth", string(types.DepthStandard), "research depth: quick, standard, or comprehensive")
	researchCmd.Flags().String("format", "markdown", "report format: markdown, json, or yaml")
	researchCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	researchCmd.Flags().StringArray("follow-up", nil, "follow-up question to run after the first completes (repeatable)")
	researchCmd.Flags().Bool("quiet", false, "suppress progress output")
	researchCmd.Flags().Bool("verbose", false, "log orchestrator internals to stderr")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a research question")
	}
	question := strings.Join(args, " ")

	depthFlag, _ := cmd.Flags().GetString("depth")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	followUps, _ := cmd.Flags().GetStringArray("follow-up")
	quiet, _ := cmd.Flags().GetBool("quiet")
	verbose, _ := cmd.Flags().GetBool("verbose")

	switch format {
	case "markdown", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q: want markdown, json, or yaml", format)
	}

	cfg := loadConfig()

	provider, err := generate.NewProviderFromConfig(cmd.Context(), cfg.Provider)
	if err != nil {
		return err
	}

	var st store.SessionStore
	if cfg.Store.Path != "" {
		sqlStore, err := store.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("opening session store: %w", err)
		}
		defer sqlStore.Close()
		st = sqlStore
	}

	logger := zap.NewNop()
	if verbose {
		if dev, err := zap.NewDevelopment(); err == nil {
			logger = dev
		}
	}

	orch := session.New(
		generate.NewPipeline(provider, cfg.Provider),
		progress.NewScheduler(cfg.Scheduler.Interval),
		st,
		logger,
		os.Getenv("USER"),
	)
	defer orch.Reset()

	questions := append([]string{question}, followUps...)
	depth := types.NormalizeDepth(depthFlag)

	var rendered []string
	for i, q := range questions {
		if i == 0 {
			err = orch.StartResearch(q, depth)
		} else {
			err = orch.SubmitFollowUp(q)
		}
		if err != nil {
			return err
		}

		snap, err := awaitResearch(orch, quiet)
		if err != nil {
			return err
		}

		text, err := renderReport(snap.CurrentReport, format)
		if err != nil {
			return err
		}
		rendered = append(rendered, text)

		if !quiet {
			printQualityBadge(*snap.CurrentReport)
		}
	}

	doc := strings.Join(rendered, "\n---\n\n")
	if output != "" {
		if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", output)
		return nil
	}
	fmt.Println(doc)
	return nil
}

// awaitResearch streams progress events to stderr until the session
// settles, then returns the final snapshot.
func awaitResearch(orch *session.Orchestrator, quiet bool) (session.Snapshot, error) {
	done := orch.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	printed := 0
	drain := func() {
		if quiet {
			return
		}
		snap := orch.Snapshot()
		for ; printed < len(snap.ProgressEvents); printed++ {
			e := snap.ProgressEvents[printed]
			fmt.Fprintf(os.Stderr, "[%s] %s (sources: %d)\n", e.Category, e.Message, e.SourcesSoFar)
		}
	}

	for {
		select {
		case <-ticker.C:
			drain()
		case <-done:
			drain()
			snap := orch.Snapshot()
			if snap.Phase == types.PhaseError {
				return snap, fmt.Errorf("%s", snap.Err)
			}
			if snap.CurrentReport == nil {
				return snap, fmt.Errorf("research produced no report")
			}
			return snap, nil
		}
	}
}

func renderReport(report *types.Report, format string) (string, error) {
	switch format {
	case "json":
		raw, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding report: %w", err)
		}
		return string(raw) + "\n", nil
	case "yaml":
		raw, err := yaml.Marshal(report)
		if err != nil {
			return "", fmt.Errorf("encoding report: %w", err)
		}
		return string(raw), nil
	default:
		return report.Markdown(), nil
	}
}

func printQualityBadge(report types.Report) {
	a := quality.Assess(report)
	fmt.Fprintf(os.Stderr, "Quality: %s (%.2f)\n", a.OverallLevel, a.OverallScore)
	for _, s := range a.Suggestions() {
		fmt.Fprintf(os.Stderr, "  %s\n", s)
	}
	if report.Usage != (types.Usage{}) {
		fmt.Fprintf(os.Stderr, "Tokens: %d in, %d out\n",
			report.Usage.InputTokens, report.Usage.OutputTokens)
	}
}
