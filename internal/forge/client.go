// Package forge is the boundary to the external code-hosting platform:
// minting installation tokens and publishing reviews. Concrete REST
// wiring is a collaborator (spec.md §1); this package gives it a small
// interface so the rest of the service never imports go-github directly.
package forge

import (
	"context"

	"github.com/iemarjay/reviewbot/internal/domain"
)

// ReviewComment is one inline comment to attach to a published review.
type ReviewComment struct {
	Path string
	Line int
	Body string
}

// Client is the forge-facing surface the worker depends on.
type Client interface {
	// MintInstallationToken returns a short-lived token scoped to the
	// given installation, usable as clone credentials.
	MintInstallationToken(ctx context.Context, installationID int64) (string, error)

	// PublishReview posts one verdict + summary + inline comments
	// against a pull request (spec.md §4.I).
	PublishReview(ctx context.Context, repoFullName string, prNumber int, commitSHA string, verdict domain.Verdict, summary string, comments []ReviewComment) error
}
