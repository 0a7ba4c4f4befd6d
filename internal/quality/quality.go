// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality scores a finished research report across source
// diversity, section depth, citation coverage, and knowledge-gap
// identification. The assessment is advisory: it never mutates the
// report it inspects.
package quality

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Level buckets an overall score into a human-readable rating.
type Level string

const (
	LevelExcellent        Level = "excellent"
	LevelGood             Level = "good"
	LevelAcceptable       Level = "acceptable"
	LevelNeedsImprovement Level = "needs_improvement"
	LevelPoor             Level = "poor"
)

// Issue is one identified weakness with a concrete suggestion.
type Issue struct {
	Category    string
	Severity    string // "high", "medium", "low"
	Description string
	Suggestion  string
}

// Assessment is the complete quality report for one research report.
type Assessment struct {
	OverallScore float64 // 0.0 to 1.0
	OverallLevel Level
	Issues       []Issue

	SourceScore   float64
	DepthScore    float64
	CitationScore float64
	GapScore      float64

	TotalSources  int
	UniqueDomains int
}

// Source count thresholds.
const (
	minSources       = 3
	targetSources    = 5
	excellentSources = 8

	minSections    = 2
	targetSections = 5

	minDomains = 2
)

// Dimension weights for the overall score.
const (
	weightSources   = 0.30
	weightDepth     = 0.25
	weightCitations = 0.25
	weightGaps      = 0.20
)

// Assess scores a report. It always returns a complete Assessment,
// even for an empty report.
func Assess(report types.Report) Assessment {
	a := Assessment{}

	a.SourceScore = a.scoreSources(report.Sources)
	a.DepthScore = a.scoreDepth(report.Sections)
	a.CitationScore = a.scoreCitations(report)
	a.GapScore = a.scoreGaps(report)

	a.OverallScore = a.SourceScore*weightSources +
		a.DepthScore*weightDepth +
		a.CitationScore*weightCitations +
		a.GapScore*weightGaps
	a.OverallLevel = levelFor(a.OverallScore)
	return a
}

func levelFor(score float64) Level {
	switch {
	case score >= 0.85:
		return LevelExcellent
	case score >= 0.7:
		return LevelGood
	case score >= 0.5:
		return LevelAcceptable
	case score >= 0.3:
		return LevelNeedsImprovement
	default:
		return LevelPoor
	}
}

func (a *Assessment) addIssue(category, severity, description, suggestion string) {
	a.Issues = append(a.Issues, Issue{
		Category:    category,
		Severity:    severity,
		Description: description,
		Suggestion:  suggestion,
	})
}

// scoreSources rates the citation pool by count and by how many
// distinct hosts it draws from.
func (a *Assessment) scoreSources(sources []types.Source) float64 {
	a.TotalSources = len(sources)
	a.UniqueDomains = countDomains(sources)

	var score float64
	switch {
	case a.TotalSources >= excellentSources:
		score = 1.0
	case a.TotalSources >= targetSources:
		score = 0.8
	case a.TotalSources >= minSources:
		score = 0.6
	case a.TotalSources >= 1:
		score = 0.3
	default:
		a.addIssue("source_diversity", "high",
			"No sources were cited in the report",
			"Ask for a deeper research pass to gather sources")
		return 0.0
	}

	if ratio := float64(a.UniqueDomains) / float64(a.TotalSources); ratio < 0.5 {
		score *= 0.8
		a.addIssue("source_diversity", "medium",
			fmt.Sprintf("Limited domain diversity: %d unique domains from %d sources", a.UniqueDomains, a.TotalSources),
			"Include sources from different websites and perspectives")
	}
	if a.UniqueDomains < minDomains && a.TotalSources >= minSources {
		a.addIssue("source_diversity", "medium",
			fmt.Sprintf("Only %d unique domain(s) across the source list", a.UniqueDomains),
			"Draw on news, academic, and industry sources")
	}
	return score
}

// scoreDepth rates how much structured content the report carries.
func (a *Assessment) scoreDepth(sections []types.ReportSection) float64 {
	n := len(sections)
	switch {
	case n >= targetSections:
		return 1.0
	case n >= minSections:
		return 0.6 + float64(n-minSections)/float64(targetSections-minSections)*0.4
	case n == 1:
		a.addIssue("depth", "medium",
			"Report contains a single section",
			"Request standard or comprehensive depth for a fuller report")
		return 0.4
	default:
		a.addIssue("depth", "high",
			"Report contains no findings",
			"Rerun the research with a more specific question")
		return 0.0
	}
}

// scoreCitations rates the share of sections backed by at least one
// citation that resolves to a listed source.
func (a *Assessment) scoreCitations(report types.Report) float64 {
	if len(report.Sections) == 0 {
		return 0.5 // neutral when there is nothing to attribute
	}
	valid := make(map[int]bool, len(report.Sources))
	for _, s := range report.Sources {
		valid[s.ID] = true
	}

	cited := 0
	for _, sec := range report.Sections {
		for _, id := range sec.CitationIDs {
			if valid[id] {
				cited++
				break
			}
		}
	}
	coverage := float64(cited) / float64(len(report.Sections))
	if coverage < 0.8 {
		a.addIssue("citation_coverage", "medium",
			fmt.Sprintf("Only %d/%d sections cite a listed source", cited, len(report.Sections)),
			"Ensure every finding is linked to its sources")
	}
	return coverage
}

// scoreGaps rates whether the report acknowledges the limits of what
// was found, either through an explicit gap list or gap language in
// the text.
func (a *Assessment) scoreGaps(report types.Report) float64 {
	if len(report.KnowledgeGaps) > 0 {
		return 1.0
	}
	var body strings.Builder
	body.WriteString(report.ExecutiveSummary)
	for _, sec := range report.Sections {
		body.WriteString(" ")
		body.WriteString(sec.Content)
	}
	text := strings.ToLower(body.String())
	for _, term := range []string{
		"knowledge gap", "limitation", "further research",
		"not clear", "uncertain", "more research",
	} {
		if strings.Contains(text, term) {
			return 1.0
		}
	}
	if strings.TrimSpace(text) == "" {
		return 0.5
	}
	a.addIssue("knowledge_gaps", "low",
		"Report does not identify knowledge gaps",
		"Note areas where information is incomplete or uncertain")
	return 0.7
}

// Suggestions returns improvement advice ordered by severity.
func (a Assessment) Suggestions() []string {
	var out []string
	for _, severity := range []string{"high", "medium"} {
		for _, issue := range a.Issues {
			if issue.Severity == severity {
				out = append(out, fmt.Sprintf("[%s] %s", strings.ToUpper(severity), issue.Suggestion))
			}
		}
	}
	return out
}

func countDomains(sources []types.Source) int {
	domains := make(map[string]bool)
	for _, s := range sources {
		if host := hostOf(s.URL); host != "" {
			domains[host] = true
		}
	}
	return len(domains)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
