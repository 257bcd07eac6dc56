// Package domain holds the value types shared across ingestion, the
// agent loop, and persistence, kept free of any storage or transport tags.
package domain

import "time"

// Verdict is the overall outcome of a review.
type Verdict string

const (
	VerdictApprove        Verdict = "approve"
	VerdictRequestChanges  Verdict = "request_changes"
	VerdictComment        Verdict = "comment"
)

// Severity is the severity of one finding.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
	SeverityNote       Severity = "note"
)

// Finding is one atomic review observation produced by the model.
type Finding struct {
	Skill    string   `json:"skill"`
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Line     int      `json:"line"`
	EndLine  *int     `json:"end_line,omitempty"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
}

// Eligible reports whether a finding can be posted as an inline comment.
func (f Finding) Eligible() bool {
	return f.Path != "" && f.Line >= 1
}

// DeriveVerdict implements the verdict law of spec.md §3/§7: any
// critical finding forces request_changes; any warning or suggestion
// forces at least comment; otherwise approve.
func DeriveVerdict(findings []Finding) Verdict {
	hasCritical := false
	hasCommentable := false
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			hasCritical = true
		case SeverityWarning, SeveritySuggestion:
			hasCommentable = true
		}
	}
	switch {
	case hasCritical:
		return VerdictRequestChanges
	case hasCommentable:
		return VerdictComment
	default:
		return VerdictApprove
	}
}

// GateReason explains why the dedup/rate-limit gate denied a request.
type GateReason string

const (
	ReasonRepoDisabled GateReason = "repo_disabled"
	ReasonDuplicateSHA GateReason = "duplicate_sha"
	ReasonRateLimited  GateReason = "rate_limited"
)

// GateDecision is the result of the dedup/rate-limit gate (spec.md §4.B).
type GateDecision struct {
	Allowed bool
	Reason  GateReason
}

// JobPayload is the validated queue message (spec.md §6).
type JobPayload struct {
	PRNumber       int       `json:"prNumber"`
	PRTitle        string    `json:"prTitle"`
	PRBody         string    `json:"prBody"`
	RepoFullName   string    `json:"repoFullName"`
	CloneURL       string    `json:"cloneUrl"`
	HeadRef        string    `json:"headRef"`
	HeadSHA        string    `json:"headSha"`
	BaseRef        string    `json:"baseRef"`
	BaseSHA        string    `json:"baseSha"`
	PRAuthor       string    `json:"prAuthor"`
	InstallationID int64     `json:"installationId"`
	EnqueuedAt     time.Time `json:"enqueuedAt"`
}

// RepoSettings is the per-repository settings blob (spec.md §3).
type RepoSettings struct {
	Strictness      string   `json:"strictness"` // lenient|balanced|strict
	IgnoreGlobs     []string `json:"ignoreGlobs"`
	CustomChecklist []string `json:"customChecklist"`
}
