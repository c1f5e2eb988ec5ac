package model

import "fmt"

type DiagnosticCode string

const (
	CodeMissingTeamProfile  DiagnosticCode = "missing-team-profile"
	CodeMissingTrackProfile DiagnosticCode = "missing-track-profile"
	CodeMalformedStrategy   DiagnosticCode = "malformed-strategy"
	CodeUnknownCompound     DiagnosticCode = "unknown-compound"
	CodeEmptySearchGrid     DiagnosticCode = "empty-search-grid"
)

// Diagnostic reports a situation which was recovered by using a fallback.
// The result is still usable but may be less accurate.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}
