package ingest

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/iemarjay/reviewbot/internal/domain"
	"github.com/iemarjay/reviewbot/internal/store"
)

const (
	rateLimitWindow = time.Hour
)

// Gate implements the dedup/rate-limit gate of spec.md §4.B.
type Gate struct {
	store                    *store.Store
	maxReviewsPerRepoPerHour int
}

// NewGate builds a Gate against the given store and per-repo hourly quota.
func NewGate(s *store.Store, maxReviewsPerRepoPerHour int) *Gate {
	return &Gate{store: s, maxReviewsPerRepoPerHour: maxReviewsPerRepoPerHour}
}

// Admit runs the gate's five-step algorithm for one webhook delivery.
func (g *Gate) Admit(repoFullName string, prNumber int, headSHA string) (domain.GateDecision, error) {
	repo, err := g.store.GetRepository(repoFullName)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.GateDecision{}, err
	}
	if repo != nil && !repo.Enabled {
		return domain.GateDecision{Allowed: false, Reason: domain.ReasonRepoDisabled}, nil
	}

	row, err := g.store.InsertDedupRow(repoFullName, prNumber, headSHA)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateDedupRow) {
			return domain.GateDecision{Allowed: false, Reason: domain.ReasonDuplicateSHA}, nil
		}
		return domain.GateDecision{}, fmt.Errorf("insert dedup row: %w", err)
	}

	count, err := g.store.CountRecentDedupRows(repoFullName, rateLimitWindow)
	if err != nil {
		return domain.GateDecision{}, fmt.Errorf("count recent dedup rows: %w", err)
	}
	if int(count) > g.maxReviewsPerRepoPerHour {
		if setErr := g.store.SetDedupStatus(row.ID, "failed"); setErr != nil {
			return domain.GateDecision{}, fmt.Errorf("mark rate-limited row failed: %w", setErr)
		}
		return domain.GateDecision{Allowed: false, Reason: domain.ReasonRateLimited}, nil
	}

	if err := g.store.SupersedeOtherQueued(repoFullName, prNumber, headSHA); err != nil {
		return domain.GateDecision{}, fmt.Errorf("supersede other queued rows: %w", err)
	}

	return domain.GateDecision{Allowed: true}, nil
}

// IsJobSuperseded reports whether the dedup row for (repo, pr, sha) has
// been superseded. Absence of a row (legacy data predating the ledger)
// is treated as not superseded.
func (g *Gate) IsJobSuperseded(repoFullName string, prNumber int, headSHA string) (bool, error) {
	status, found, err := g.store.DedupStatus(repoFullName, prNumber, headSHA)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return status == "superseded", nil
}

// MarkJobProcessing flips the dedup row to processing at worker entry.
func (g *Gate) MarkJobProcessing(repoFullName string, prNumber int, headSHA string) error {
	return g.setStatusByKey(repoFullName, prNumber, headSHA, "processing")
}

// MarkJobDone flips the dedup row to a terminal status at worker exit.
func (g *Gate) MarkJobDone(repoFullName string, prNumber int, headSHA string, status string) error {
	return g.setStatusByKey(repoFullName, prNumber, headSHA, status)
}

func (g *Gate) setStatusByKey(repoFullName string, prNumber int, headSHA, status string) error {
	_, found, err := g.store.DedupStatus(repoFullName, prNumber, headSHA)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return g.store.DB().Model(&store.JobDedup{}).
		Where("repo_full_name = ? AND pr_number = ? AND head_sha = ?", repoFullName, prNumber, headSHA).
		Update("status", status).Error
}
