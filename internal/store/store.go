package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateDedupRow is returned by InsertDedupRow when a row already
// exists for the (repo, pr, sha) key — the UNIQUE-violation race spec.md
// §4.B step 2 describes.
var ErrDuplicateDedupRow = errors.New("duplicate dedup row")

// Store wraps database access for the application.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying gorm DB for handlers that need raw queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GetRepository looks up a repository by full name. Returns
// gorm.ErrRecordNotFound when absent.
func (s *Store) GetRepository(fullName string) (*Repository, error) {
	var repo Repository
	if err := s.db.Where("full_name = ?", fullName).First(&repo).Error; err != nil {
		return nil, err
	}
	return &repo, nil
}

// UpsertRepository creates or updates a repository record keyed on full name.
func (s *Store) UpsertRepository(repo *Repository) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "full_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"installation_id", "updated_at"}),
	}).Create(repo).Error
}

// InsertDedupRow attempts to insert a new dedup row with status "queued".
// Returns ErrDuplicateDedupRow if the (repo, pr, sha) key already exists.
func (s *Store) InsertDedupRow(repoFullName string, prNumber int, headSHA string) (*JobDedup, error) {
	row := &JobDedup{
		RepoFullName: repoFullName,
		PRNumber:     prNumber,
		HeadSHA:      headSHA,
		Status:       "queued",
	}

	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		// DoNothing swallowed the conflict silently; the row exists already.
		return nil, ErrDuplicateDedupRow
	}
	return row, nil
}

// CountRecentDedupRows counts dedup rows for a repo created within the
// last window (spec.md §4.B step 3).
func (s *Store) CountRecentDedupRows(repoFullName string, window time.Duration) (int64, error) {
	var count int64
	err := s.db.Model(&JobDedup{}).
		Where("repo_full_name = ? AND created_at > ?", repoFullName, time.Now().Add(-window)).
		Count(&count).Error
	return count, err
}

// SetDedupStatus updates a single dedup row's status by id.
func (s *Store) SetDedupStatus(id uint, status string) error {
	return s.db.Model(&JobDedup{}).Where("id = ?", id).Update("status", status).Error
}

// SupersedeOtherQueued marks every other queued row for the same (repo, pr)
// with a different sha as superseded (spec.md §4.B step 4).
func (s *Store) SupersedeOtherQueued(repoFullName string, prNumber int, headSHA string) error {
	return s.db.Model(&JobDedup{}).
		Where("repo_full_name = ? AND pr_number = ? AND status = ? AND head_sha <> ?",
			repoFullName, prNumber, "queued", headSHA).
		Update("status", "superseded").Error
}

// DedupStatus returns the status of the dedup row for (repo, pr, sha), and
// whether a row exists at all. Absence means "legacy"/not superseded per
// the open question in spec.md §9.
func (s *Store) DedupStatus(repoFullName string, prNumber int, headSHA string) (status string, found bool, err error) {
	var row JobDedup
	err = s.db.Where("repo_full_name = ? AND pr_number = ? AND head_sha = ?", repoFullName, prNumber, headSHA).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Status, true, nil
}

// InsertReview records one terminal review row.
func (s *Store) InsertReview(review *Review) error {
	return s.db.Create(review).Error
}

// InsertReviewTraces inserts every trace turn for a review in a single batch.
func (s *Store) InsertReviewTraces(reviewID uint, turns []ReviewTraceTurn) error {
	if len(turns) == 0 {
		return nil
	}
	for i := range turns {
		turns[i].ReviewID = reviewID
	}
	return s.db.Create(&turns).Error
}

// UpsertWorkerHeartbeat records that a worker is alive.
func (s *Store) UpsertWorkerHeartbeat(workerID, hostname string) error {
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "worker_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"hostname", "last_heartbeat",
		}),
	}).Create(&WorkerMetrics{
		WorkerID:      workerID,
		Hostname:      hostname,
		LastHeartbeat: time.Now(),
	}).Error
}

// IncrementWorkerCounters bumps the processed/failed counters for a worker.
func (s *Store) IncrementWorkerCounters(workerID string, processed, failed int64) error {
	updates := map[string]interface{}{
		"last_heartbeat": time.Now(),
	}
	if processed > 0 {
		updates["tasks_processed"] = gorm.Expr("tasks_processed + ?", processed)
	}
	if failed > 0 {
		updates["tasks_failed"] = gorm.Expr("tasks_failed + ?", failed)
	}
	return s.db.Model(&WorkerMetrics{}).Where("worker_id = ?", workerID).Updates(updates).Error
}

// SweepStaleProcessing demotes dedup rows stuck in "processing" past the
// given age back to "failed" (recommended per spec.md §9's open question).
func (s *Store) SweepStaleProcessing(olderThan time.Duration) (int64, error) {
	tx := s.db.Model(&JobDedup{}).
		Where("status = ? AND created_at < ?", "processing", time.Now().Add(-olderThan)).
		Update("status", "failed")
	return tx.RowsAffected, tx.Error
}
