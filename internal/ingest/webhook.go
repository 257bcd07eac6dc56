package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iemarjay/reviewbot/internal/apperr"
	"github.com/iemarjay/reviewbot/internal/domain"
)

// Enqueuer hands a validated job to the durable queue adapter (§4.C).
// Implemented by internal/queueadapter.Queue.
type Enqueuer interface {
	Send(job domain.JobPayload) error
}

// Handler is the HTTP entry point for forge webhook deliveries.
type Handler struct {
	secret   string
	gate     *Gate
	enqueue  Enqueuer
}

// NewHandler builds a webhook Handler.
func NewHandler(secret string, gate *Gate, enqueue Enqueuer) *Handler {
	return &Handler{secret: secret, gate: gate, enqueue: enqueue}
}

// pullRequestEvent is the subset of the GitHub pull_request webhook
// payload this service cares about.
type pullRequestEvent struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	PullRequest struct {
		Title  string `json:"title"`
		Body   string `json:"body"`
		Draft  bool   `json:"draft"`
		User   struct {
			Login string `json:"login"`
		} `json:"user"`
		Head struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"base"`
	} `json:"pull_request"`
}

// ServeHTTP implements A (signature), D (validation), and B (gate) in
// sequence, then hands the job to the queue.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !VerifySignature(body, r.Header.Get("X-Hub-Signature-256"), h.secret) {
		log.Warn().Err(apperr.ErrAuthFailure).Msg("webhook signature verification failed")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType != "pull_request" {
		writeOutcome(w, "ignored_event_type")
		return
	}

	var evt pullRequestEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		log.Warn().Err(fmt.Errorf("%w: %s", apperr.ErrValidationFailure, err)).Msg("failed to unmarshal pull_request payload")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	if evt.Action != "opened" && evt.Action != "synchronize" {
		writeOutcome(w, "ignored_action")
		return
	}
	if evt.PullRequest.Draft {
		writeOutcome(w, "ignored_draft")
		return
	}

	raw := RawJob{
		PRNumber:       evt.Number,
		PRTitle:        strPtr(evt.PullRequest.Title),
		PRBody:         strPtr(evt.PullRequest.Body),
		RepoFullName:   evt.Repository.FullName,
		CloneURL:       "https://github.com/" + evt.Repository.FullName + ".git",
		HeadRef:        evt.PullRequest.Head.Ref,
		HeadSHA:        evt.PullRequest.Head.SHA,
		BaseRef:        evt.PullRequest.Base.Ref,
		BaseSHA:        evt.PullRequest.Base.SHA,
		PRAuthor:       strPtr(evt.PullRequest.User.Login),
		InstallationID: evt.Installation.ID,
		EnqueuedAt:     strPtr(time.Now().UTC().Format(time.RFC3339)),
	}

	job, err := ValidateJob(raw)
	if err != nil {
		log.Warn().Err(&apperr.ValidationError{Field: "job", Message: err.Error()}).Msg("job payload failed validation")
		http.Error(w, "invalid job payload", http.StatusBadRequest)
		return
	}

	decision, err := h.gate.Admit(job.RepoFullName, job.PRNumber, job.HeadSHA)
	if err != nil {
		log.Error().Err(err).Msg("dedup/rate-limit gate failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !decision.Allowed {
		log.Info().
			Str("repo", job.RepoFullName).
			Int("pr", job.PRNumber).
			Str("reason", string(decision.Reason)).
			Msg("webhook rejected by gate")
		if decision.Reason == domain.ReasonRateLimited {
			log.Info().Err(apperr.ErrRateLimited).Str("repo", job.RepoFullName).Msg("repo hourly quota exceeded")
			http.Error(w, string(decision.Reason), http.StatusTooManyRequests)
			return
		}
		writeOutcome(w, string(decision.Reason))
		return
	}

	if err := h.enqueue.Send(job); err != nil {
		log.Error().Err(err).Msg("failed to enqueue job")
		http.Error(w, "failed to enqueue", http.StatusInternalServerError)
		return
	}

	writeOutcome(w, "enqueued")
}

// writeOutcome responds 200 with a small JSON body naming reason, so a
// caller can tell "enqueued" apart from "rejected as duplicate_sha" and
// every other non-error outcome (spec.md §8 scenario 2).
func writeOutcome(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"reason": reason})
}

func strPtr(s string) *string { return &s }
