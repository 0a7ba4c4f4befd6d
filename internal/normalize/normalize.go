// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize converts raw generative-provider output into a
// structurally valid Report. The conversion is total: every input
// string, well-formed JSON or not, yields a valid Report and never
// panics. Parsing and validation are two distinct stages so each can
// be tested on its own.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/research-agent/pkg/types"
)

const (
	// defaultTitle is used when a parsed payload carries no title.
	defaultTitle = "Research Report"

	// fallbackTitle is used when the payload does not parse as JSON.
	fallbackTitle = "Research Findings"

	// fallbackSectionTitle names the single section of a fallback report.
	fallbackSectionTitle = "Analysis"

	// fallbackSummaryLen bounds the summary taken from unparseable text.
	fallbackSummaryLen = 500

	// parsedQuality is the default score for a payload that parsed.
	parsedQuality = 0.75

	// fallbackQuality signals lower confidence for unparseable payloads.
	fallbackQuality = 0.7
)

// validSourceTypes is the set of accepted source type labels.
var validSourceTypes = map[types.SourceType]bool{
	types.SourceArticle: true,
	types.SourceReport:  true,
	types.SourcePaper:   true,
	types.SourceNews:    true,
	types.SourceCompany: true,
}

// Normalize converts raw provider text into a valid Report for the
// given question. Malformed input degrades to a single-section
// fallback report rather than an error.
func Normalize(rawText, question string) types.Report {
	cleaned := stripCodeFence(rawText)

	var report types.Report
	if payload, ok := parse(cleaned); ok {
		report = build(payload)
	} else {
		report = buildFallback(rawText)
	}

	report.ID = uuid.NewString()
	report.Question = question
	report.GeneratedAt = time.Now()
	return report
}

// stripCodeFence removes a leading/trailing triple-backtick wrapper,
// with or without a language tag, and trims surrounding whitespace.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = s[3:]
		// Drop a language tag like "json" up to the first newline.
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			firstLine := strings.TrimSpace(s[:i])
			if firstLine != "" && !strings.ContainsAny(firstLine, "{[") {
				s = s[i+1:]
			}
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parse attempts to read the cleaned text as a JSON object into a
// dynamic map. It reports false for anything that is not a JSON object.
func parse(cleaned string) (map[string]any, bool) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, false
	}
	if payload == nil {
		// "null" decodes without error but is not an object.
		return nil, false
	}
	return payload, true
}

// build validates a parsed payload into a strict Report, defaulting
// every missing or malformed field.
func build(payload map[string]any) types.Report {
	report := types.Report{
		Title:            stringField(payload, defaultTitle, "title"),
		ExecutiveSummary: stringField(payload, "", "summary", "executiveSummary", "executive_summary"),
		Sections:         buildSections(listField(payload, "findings", "sections")),
		Sources:          buildSources(listField(payload, "sources")),
		KnowledgeGaps:    stringList(listField(payload, "knowledgeGaps", "knowledge_gaps")),
		QualityScore:     clampScore(floatField(payload, parsedQuality, "qualityScore", "quality_score")),
	}
	return report
}

// buildFallback constructs the single-section report used when the
// provider text is not JSON: the raw text becomes the analysis body.
func buildFallback(rawText string) types.Report {
	summary := rawText
	// Truncate on runes, not bytes: a byte cut can land mid-rune and
	// leave invalid UTF-8 in the summary.
	if r := []rune(summary); len(r) > fallbackSummaryLen {
		summary = string(r[:fallbackSummaryLen])
	}
	return types.Report{
		Title:            fallbackTitle,
		ExecutiveSummary: summary,
		Sections: []types.ReportSection{
			{
				ID:          "sec-1",
				Title:       fallbackSectionTitle,
				Content:     rawText,
				CitationIDs: []int{},
			},
		},
		Sources:       []types.Source{},
		KnowledgeGaps: []string{},
		QualityScore:  fallbackQuality,
	}
}

// buildSections validates finding entries into ReportSections. Section
// ids are assigned positionally; any id in the input is ignored.
func buildSections(entries []any) []types.ReportSection {
	sections := make([]types.ReportSection, 0, len(entries))
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		sections = append(sections, types.ReportSection{
			ID:          fmt.Sprintf("sec-%d", i+1),
			Title:       stringField(m, fmt.Sprintf("Finding %d", i+1), "title"),
			Content:     stringField(m, "", "content"),
			CitationIDs: intList(listField(m, "citationIds", "citation_ids", "citations")),
		})
	}
	return sections
}

// buildSources validates source entries and re-indexes them as a dense
// 1..N sequence in array order, regardless of any id the provider
// supplied. Citation markers stay resolvable because of this density.
func buildSources(entries []any) []types.Source {
	sources := make([]types.Source, 0, len(entries))
	n := 0
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		n++
		srcType := types.SourceType(stringField(m, string(types.SourceNews), "type", "sourceType", "source_type"))
		if !validSourceTypes[srcType] {
			srcType = types.SourceNews
		}
		sources = append(sources, types.Source{
			ID:            n,
			Title:         stringField(m, fmt.Sprintf("Source %d", n), "title"),
			URL:           stringField(m, "#", "url"),
			PublishedDate: stringField(m, "", "publishedDate", "published_date", "date"),
			Author:        stringField(m, "", "author"),
			Reliability:   stringField(m, "medium", "reliability"),
			Type:          srcType,
		})
	}
	return sources
}

// stringField returns the first non-empty string value among keys,
// or fallback.
func stringField(m map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return fallback
}

// floatField returns the first numeric value among keys, or fallback.
// Numeric strings are accepted.
func floatField(m map[string]any, fallback float64, keys ...string) float64 {
	for _, key := range keys {
		if f, ok := toFloat(m[key]); ok {
			return f
		}
	}
	return fallback
}

// listField returns the first list value among keys, or nil.
func listField(m map[string]any, keys ...string) []any {
	for _, key := range keys {
		if l, ok := m[key].([]any); ok {
			return l
		}
	}
	return nil
}

// stringList keeps the string entries of a dynamic list.
func stringList(entries []any) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// intList coerces dynamic list entries to integers, dropping anything
// non-numeric. Cross-validation against the source id range is the
// renderer's responsibility, not done here.
func intList(entries []any) []int {
	out := make([]int, 0, len(entries))
	for _, entry := range entries {
		if f, ok := toFloat(entry); ok {
			out = append(out, int(f))
		}
	}
	return out
}

// toFloat coerces a dynamic value to a float64. JSON numbers decode as
// float64; numeric strings are parsed as a courtesy.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// clampScore bounds a quality score to [0,1].
func clampScore(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
