package ingest

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/iemarjay/reviewbot/internal/domain"
)

var (
	repoFullNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	refRe          = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)
	shaRe          = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)
)

// RawJob is the wire shape a queue message is decoded into before
// validation fills in defaults and produces a domain.JobPayload.
type RawJob struct {
	PRNumber       int     `json:"prNumber"`
	PRTitle        *string `json:"prTitle"`
	PRBody         *string `json:"prBody"`
	RepoFullName   string  `json:"repoFullName"`
	CloneURL       string  `json:"cloneUrl"`
	HeadRef        string  `json:"headRef"`
	HeadSHA        string  `json:"headSha"`
	BaseRef        string  `json:"baseRef"`
	BaseSHA        string  `json:"baseSha"`
	PRAuthor       *string `json:"prAuthor"`
	InstallationID int64   `json:"installationId"`
	EnqueuedAt     *string `json:"enqueuedAt"`
}

// ValidateJob applies the §4.D schema and regex checks to a raw job and
// returns the normalized domain payload, or an error describing the
// first failing field.
func ValidateJob(raw RawJob) (domain.JobPayload, error) {
	if !repoFullNameRe.MatchString(raw.RepoFullName) {
		return domain.JobPayload{}, fmt.Errorf("repoFullName %q does not match required pattern", raw.RepoFullName)
	}

	if err := validateHTTPSCloneURL(raw.CloneURL); err != nil {
		return domain.JobPayload{}, err
	}

	if !refRe.MatchString(raw.HeadRef) {
		return domain.JobPayload{}, fmt.Errorf("headRef %q does not match required pattern", raw.HeadRef)
	}
	if !refRe.MatchString(raw.BaseRef) {
		return domain.JobPayload{}, fmt.Errorf("baseRef %q does not match required pattern", raw.BaseRef)
	}
	if !shaRe.MatchString(raw.HeadSHA) {
		return domain.JobPayload{}, fmt.Errorf("headSha %q does not match required pattern", raw.HeadSHA)
	}
	if !shaRe.MatchString(raw.BaseSHA) {
		return domain.JobPayload{}, fmt.Errorf("baseSha %q does not match required pattern", raw.BaseSHA)
	}
	if raw.InstallationID <= 0 {
		return domain.JobPayload{}, fmt.Errorf("installationId must be a positive integer")
	}

	job := domain.JobPayload{
		PRNumber:       raw.PRNumber,
		PRTitle:        derefOrDefault(raw.PRTitle, ""),
		PRBody:         derefOrDefault(raw.PRBody, ""),
		RepoFullName:   raw.RepoFullName,
		CloneURL:       raw.CloneURL,
		HeadRef:        raw.HeadRef,
		HeadSHA:        raw.HeadSHA,
		BaseRef:        raw.BaseRef,
		BaseSHA:        raw.BaseSHA,
		PRAuthor:       derefOrDefault(raw.PRAuthor, "unknown"),
		InstallationID: raw.InstallationID,
		EnqueuedAt:     parseEnqueuedAt(raw.EnqueuedAt),
	}

	return job, nil
}

// ValidateJobPayload re-runs the §4.D schema checks against an
// already-typed job payload. The queue consumer uses this to validate
// a second time before spending E-J's work, per spec.md §4.C.
func ValidateJobPayload(job domain.JobPayload) error {
	if !repoFullNameRe.MatchString(job.RepoFullName) {
		return fmt.Errorf("repoFullName %q does not match required pattern", job.RepoFullName)
	}
	if err := validateHTTPSCloneURL(job.CloneURL); err != nil {
		return err
	}
	if !refRe.MatchString(job.HeadRef) {
		return fmt.Errorf("headRef %q does not match required pattern", job.HeadRef)
	}
	if !refRe.MatchString(job.BaseRef) {
		return fmt.Errorf("baseRef %q does not match required pattern", job.BaseRef)
	}
	if !shaRe.MatchString(job.HeadSHA) {
		return fmt.Errorf("headSha %q does not match required pattern", job.HeadSHA)
	}
	if !shaRe.MatchString(job.BaseSHA) {
		return fmt.Errorf("baseSha %q does not match required pattern", job.BaseSHA)
	}
	if job.InstallationID <= 0 {
		return fmt.Errorf("installationId must be a positive integer")
	}
	return nil
}

// ValidateRefAndSHA re-validates a ref/sha pair, used by the sandbox
// controller before running any git command against operator input
// (spec.md §4.E).
func ValidateRefAndSHA(ref, sha string) error {
	if !refRe.MatchString(ref) {
		return fmt.Errorf("ref %q does not match required pattern", ref)
	}
	if !shaRe.MatchString(sha) {
		return fmt.Errorf("sha %q does not match required pattern", sha)
	}
	return nil
}

func validateHTTPSCloneURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("cloneUrl %q is not a valid URL: %w", raw, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("cloneUrl %q must be an HTTPS URL", raw)
	}
	return nil
}

func derefOrDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func parseEnqueuedAt(s *string) time.Time {
	if s == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return time.Time{}
	}
	return t
}
