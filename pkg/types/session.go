// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Phase describes where a session is in its lifecycle.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseResearching Phase = "researching"
	PhaseCompleted   Phase = "completed"
	PhaseError       Phase = "error"
)

// Depth selects how thorough a research run should be. Invalid or
// missing values fall back to DepthStandard.
type Depth string

const (
	DepthQuick         Depth = "quick"
	DepthStandard      Depth = "standard"
	DepthComprehensive Depth = "comprehensive"
)

// NormalizeDepth maps an arbitrary string onto a valid Depth,
// defaulting to standard.
func NormalizeDepth(s string) Depth {
	switch Depth(s) {
	case DepthQuick, DepthStandard, DepthComprehensive:
		return Depth(s)
	default:
		return DepthStandard
	}
}

// Exchange is one completed question/report pair in the session's
// conversation history.
type Exchange struct {
	// Question is the question that produced the report.
	Question Question `json:"question" yaml:"question"`

	// Report is the completed report.
	Report Report `json:"report" yaml:"report"`
}

// SessionStatus is the remote persistence status for a session record.
type SessionStatus string

const (
	StatusPending     SessionStatus = "pending"
	StatusResearching SessionStatus = "researching"
	StatusCompleted   SessionStatus = "completed"
	StatusFailed      SessionStatus = "failed"
)
