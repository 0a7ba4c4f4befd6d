// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"text/template"
)

// systemPrompt is the fixed system instruction sent with every
// generation request.
const systemPrompt = `You are an expert research analyst specializing in thorough,
unbiased market and competitive research. You synthesize findings into
clear, structured reports, cite a source for every factual claim,
identify knowledge gaps, and present multiple perspectives when
viewpoints differ. You respond only with the JSON object requested,
with no text before or after it.`

// userPromptTmpl is the per-question instruction. It asks for the JSON
// shape the normalizer reads; the normalizer tolerates any deviation.
var userPromptTmpl = template.Must(template.New("research").Parse(`Research the following question and produce a structured report.

Question: {{.Question}}

Produce roughly {{.FindingCount}} findings supported by roughly {{.SourceCount}} distinct sources.

Respond with a single JSON object of this shape:
{
  "title": "report title",
  "summary": "executive summary, 2-4 sentences",
  "findings": [
    {"title": "finding heading", "content": "finding body with inline citation markers like [1]", "citationIds": [1, 2]}
  ],
  "sources": [
    {"title": "source title", "url": "https://...", "publishedDate": "2026-01-15", "author": "optional", "reliability": "high|medium|low", "type": "article|report|paper|news|company"}
  ],
  "knowledgeGaps": ["area needing more research"],
  "qualityScore": 0.0
}

Rules:
- Every finding must cite at least one source by its 1-based position in the sources array.
- qualityScore is your confidence in the report, between 0.0 and 1.0.
- Do not include any text outside the JSON object. Do not wrap it in code fences.
`))

// promptData feeds userPromptTmpl.
type promptData struct {
	Question     string
	FindingCount int
	SourceCount  int
}

// renderUserPrompt executes the user prompt template for one question.
func renderUserPrompt(question string, params depthParams) (string, error) {
	var buf bytes.Buffer
	err := userPromptTmpl.Execute(&buf, promptData{
		Question:     question,
		FindingCount: params.findingCount,
		SourceCount:  params.sourceCount,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
