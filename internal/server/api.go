package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/iemarjay/reviewbot/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

func (s *Server) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminAPIKey == "" {
			writeError(w, http.StatusServiceUnavailable, "admin API key not configured")
			return
		}

		key := r.Header.Get("X-Admin-API-Key")
		if key == "" {
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				key = strings.TrimSpace(authHeader[len("bearer "):])
			}
		}

		if key != s.cfg.AdminAPIKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// queueStatsHandler reports asynq's live queue depth, for operators
// watching backlog without shelling into Redis.
func (s *Server) queueStatsHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.asynqInspector.GetQueueInfo(s.cfg.AsynqQueue)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch queue info")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queue":     info.Queue,
		"size":      info.Size,
		"pending":   info.Pending,
		"active":    info.Active,
		"scheduled": info.Scheduled,
		"retry":     info.Retry,
		"failed":    info.Archived,
	})
}

// listReviewsHandler is read-only: every write to the reviews table
// happens inside the worker, never through this API.
func (s *Server) listReviewsHandler(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	var reviews []store.Review
	q := s.store.DB().Order("created_at desc").Limit(limit)
	if repo := r.URL.Query().Get("repo"); repo != "" {
		q = q.Joins("JOIN repositories ON repositories.id = reviews.repository_id").
			Where("repositories.full_name = ?", repo)
	}
	if err := q.Find(&reviews).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) dedupStatusHandler(w http.ResponseWriter, r *http.Request) {
	fullName := mux.Vars(r)["fullName"]
	prNumber, err := strconv.Atoi(r.URL.Query().Get("pr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "pr query parameter required")
		return
	}
	headSHA := r.URL.Query().Get("sha")
	if headSHA == "" {
		writeError(w, http.StatusBadRequest, "sha query parameter required")
		return
	}

	status, found, err := s.store.DedupStatus(fullName, prNumber, headSHA)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up dedup status")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no dedup row for that repo/pr/sha")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
