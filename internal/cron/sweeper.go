// Package cron runs the periodic maintenance jobs that have no natural
// trigger from the webhook/queue path: demoting stale processing rows
// and recording worker liveness (SPEC_FULL.md §3).
package cron

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/iemarjay/reviewbot/internal/store"
)

// Sweeper runs scheduled maintenance against the store.
type Sweeper struct {
	store           *store.Store
	staleJobTimeout time.Duration
	workerID        string

	c *cron.Cron
}

// NewSweeper builds a Sweeper bound to workerID's heartbeat rows.
func NewSweeper(st *store.Store, staleJobTimeout time.Duration, workerID string) *Sweeper {
	return &Sweeper{
		store:           st,
		staleJobTimeout: staleJobTimeout,
		workerID:        workerID,
		c:               cron.New(),
	}
}

// Start schedules the sweep and heartbeat jobs and returns immediately;
// the cron library runs them on its own goroutine.
func (s *Sweeper) Start() error {
	if _, err := s.c.AddFunc("@every 1m", s.sweepStaleJobs); err != nil {
		return err
	}
	if _, err := s.c.AddFunc("@every 30s", s.heartbeat); err != nil {
		return err
	}
	s.c.Start()
	return nil
}

// Stop blocks until any in-flight job finishes.
func (s *Sweeper) Stop() {
	<-s.c.Stop().Done()
}

func (s *Sweeper) sweepStaleJobs() {
	n, err := s.store.SweepStaleProcessing(s.staleJobTimeout)
	if err != nil {
		log.Error().Err(err).Msg("sweep stale processing rows")
		return
	}
	if n > 0 {
		log.Warn().Int64("count", n).Msg("demoted stale processing rows to failed")
	}
}

func (s *Sweeper) heartbeat() {
	hostname, _ := os.Hostname()
	if err := s.store.UpsertWorkerHeartbeat(s.workerID, hostname); err != nil {
		log.Error().Err(err).Msg("upsert worker heartbeat")
	}
}
