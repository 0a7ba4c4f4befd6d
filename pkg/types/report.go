// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared domain types for the research agent:
// questions, progress events, reports, sessions, and configuration.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Question is a research question submitted by the user.
type Question struct {
	// ID is a generated identifier, unique per submission.
	ID string `json:"id" yaml:"id"`

	// Text is the question as the user typed it.
	Text string `json:"text" yaml:"text"`

	// SubmittedAt is when the question was submitted.
	SubmittedAt time.Time `json:"submitted_at" yaml:"submitted_at"`
}

// ProgressCategory classifies a progress event for display purposes.
type ProgressCategory string

const (
	ProgressInfo       ProgressCategory = "info"
	ProgressSearch     ProgressCategory = "search"
	ProgressAnalyze    ProgressCategory = "analyze"
	ProgressSynthesize ProgressCategory = "synthesize"
)

// ProgressEvent is a user-facing status message emitted while research
// is outstanding. Events form an append-only sequence in emission order.
type ProgressEvent struct {
	// ID is the event's position in the emission sequence, starting at 1.
	ID int `json:"id" yaml:"id"`

	// Message is the human-readable status text.
	Message string `json:"message" yaml:"message"`

	// Category tags the event: info, search, analyze, or synthesize.
	Category ProgressCategory `json:"category" yaml:"category"`

	// EmittedAt is when the event was emitted.
	EmittedAt time.Time `json:"emitted_at" yaml:"emitted_at"`

	// SourcesSoFar is the running "sources analyzed" counter at emission time.
	SourcesSoFar int `json:"sources_so_far" yaml:"sources_so_far"`
}

// SourceType classifies a cited source.
type SourceType string

const (
	SourceArticle SourceType = "article"
	SourceReport  SourceType = "report"
	SourcePaper   SourceType = "paper"
	SourceNews    SourceType = "news"
	SourceCompany SourceType = "company"
)

// Source is a reference cited by a report. Source ids are assigned as a
// dense 1..N sequence in array order so that inline citation markers
// always resolve to a stable position.
type Source struct {
	// ID is the 1-based citation number.
	ID int `json:"id" yaml:"id"`

	// Title is the source title.
	Title string `json:"title" yaml:"title"`

	// URL is the source location.
	URL string `json:"url" yaml:"url"`

	// PublishedDate is the source's publication date, free-form.
	PublishedDate string `json:"published_date,omitempty" yaml:"published_date,omitempty"`

	// Author is the source author, when known.
	Author string `json:"author,omitempty" yaml:"author,omitempty"`

	// Reliability is a coarse trust label: high, medium, or low.
	Reliability string `json:"reliability" yaml:"reliability"`

	// Type classifies the source: article, report, paper, news, or company.
	Type SourceType `json:"type" yaml:"type"`
}

// ReportSection is one titled section of a report. CitationIDs may
// reference source ids that do not exist in the report's source list;
// resolving them gracefully is the renderer's job, not the core's.
type ReportSection struct {
	// ID identifies the section within its report.
	ID string `json:"id" yaml:"id"`

	// Title is the section heading.
	Title string `json:"title" yaml:"title"`

	// Content is the section body text.
	Content string `json:"content" yaml:"content"`

	// CitationIDs lists the source ids this section cites.
	CitationIDs []int `json:"citation_ids" yaml:"citation_ids"`
}

// Usage is the token accounting for one provider call.
type Usage struct {
	// InputTokens is the prompt token count reported by the provider.
	InputTokens int `json:"input_tokens" yaml:"input_tokens"`

	// OutputTokens is the completion token count reported by the provider.
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
}

// Report is a completed research report. It is created exactly once per
// successful generation and is immutable thereafter.
type Report struct {
	// ID is a generated identifier; provider-supplied ids are never trusted.
	ID string `json:"id" yaml:"id"`

	// Question is the research question the report answers.
	Question string `json:"question" yaml:"question"`

	// Title is the report title.
	Title string `json:"title" yaml:"title"`

	// ExecutiveSummary is the report's summary paragraph.
	ExecutiveSummary string `json:"executive_summary" yaml:"executive_summary"`

	// Sections are the report body sections in order.
	Sections []ReportSection `json:"sections" yaml:"sections"`

	// KnowledgeGaps lists areas the research could not cover.
	KnowledgeGaps []string `json:"knowledge_gaps" yaml:"knowledge_gaps"`

	// Sources are the cited sources with dense 1..N ids.
	Sources []Source `json:"sources" yaml:"sources"`

	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`

	// DurationSeconds is how long the research took.
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`

	// QualityScore is the provider's self-assessed confidence in [0,1].
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`

	// Usage is the token accounting for the call that produced the
	// report, zero when the provider reported none.
	Usage Usage `json:"usage" yaml:"usage"`
}

// Markdown renders the report as a Markdown document with a references
// section and knowledge gaps, suitable for saving to a file.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "**Question:** %s\n\n", r.Question)

	if r.ExecutiveSummary != "" {
		fmt.Fprintf(&b, "%s\n\n", r.ExecutiveSummary)
	}

	for _, sec := range r.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", sec.Title, sec.Content)
	}

	if len(r.KnowledgeGaps) > 0 {
		b.WriteString("## Knowledge Gaps\n\n")
		for _, gap := range r.KnowledgeGaps {
			fmt.Fprintf(&b, "- %s\n", gap)
		}
		b.WriteString("\n")
	}

	if len(r.Sources) > 0 {
		b.WriteString("## References\n\n")
		for _, src := range r.Sources {
			fmt.Fprintf(&b, "[%d] %s. %s\n", src.ID, src.Title, src.URL)
		}
	}

	return b.String()
}
