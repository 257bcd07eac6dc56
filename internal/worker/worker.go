// Package worker wires components E through J into the asynq handler
// that processes one validated review job end to end.
package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/iemarjay/reviewbot/internal/agent"
	"github.com/iemarjay/reviewbot/internal/apperr"
	"github.com/iemarjay/reviewbot/internal/config"
	"github.com/iemarjay/reviewbot/internal/domain"
	"github.com/iemarjay/reviewbot/internal/forge"
	"github.com/iemarjay/reviewbot/internal/ingest"
	"github.com/iemarjay/reviewbot/internal/publish"
	"github.com/iemarjay/reviewbot/internal/queueadapter"
	"github.com/iemarjay/reviewbot/internal/sandbox"
	"github.com/iemarjay/reviewbot/internal/scrub"
	"github.com/iemarjay/reviewbot/internal/skills"
	"github.com/iemarjay/reviewbot/internal/store"
	"github.com/iemarjay/reviewbot/internal/tools"
)

// Processor holds every collaborator one job handler needs.
type Processor struct {
	cfg       *config.Config
	gate      *ingest.Gate
	store     *store.Store
	sandboxes *sandbox.Controller
	repoLock  *sandbox.RepoLock
	forge     forge.Client
	loop      *agent.Loop
	publisher *publish.Publisher
}

// NewProcessor builds a Processor from its collaborators.
func NewProcessor(cfg *config.Config, st *store.Store, gate *ingest.Gate, sandboxes *sandbox.Controller, rdb *redis.Client, forgeClient forge.Client, model agent.ModelClient) *Processor {
	return &Processor{
		cfg:       cfg,
		gate:      gate,
		store:     st,
		sandboxes: sandboxes,
		repoLock:  sandbox.NewRepoLock(rdb),
		forge:     forgeClient,
		loop:      agent.NewLoop(model),
		publisher: publish.NewPublisher(forgeClient),
	}
}

// Mux builds the asynq handler mux for this processor.
func (p *Processor) Mux() *asynq.ServeMux {
	return queueadapter.NewMux(p.handle)
}

// handle processes one job: sandbox → compose → agent loop → publish →
// persist → finalize. A panic mid-flight marks the dedup row failed
// before propagating, per the recovery policy recorded in DESIGN.md.
func (p *Processor) handle(ctx context.Context, job domain.JobPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).
				Str("repo", job.RepoFullName).Int("pr", job.PRNumber).
				Msg("review job panicked")
			_ = p.gate.MarkJobDone(job.RepoFullName, job.PRNumber, job.HeadSHA, "failed")
			err = fmt.Errorf("review job panicked: %v", r)
		}
	}()

	superseded, err := p.gate.IsJobSuperseded(job.RepoFullName, job.PRNumber, job.HeadSHA)
	if err != nil {
		return fmt.Errorf("check superseded: %w", err)
	}
	if superseded {
		log.Info().Err(apperr.ErrSuperseded).Str("repo", job.RepoFullName).Int("pr", job.PRNumber).Msg("job superseded, skipping")
		return nil
	}

	if err := p.gate.MarkJobProcessing(job.RepoFullName, job.PRNumber, job.HeadSHA); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	start := time.Now()
	run, err := p.run(ctx, job)
	if err != nil {
		_ = p.gate.MarkJobDone(job.RepoFullName, job.PRNumber, job.HeadSHA, "failed")
		p.persistFailure(job, err)
		return err
	}
	wallTime := time.Since(start)

	stats := publish.Stats{
		ActiveSkills: run.activeSkills,
		Iterations:   run.outcome.Iterations,
		InputTokens:  run.outcome.InputTokens,
		OutputTokens: run.outcome.OutputTokens,
		WallTime:     wallTime,
	}

	if err := p.publisher.Publish(ctx, job.RepoFullName, job.PRNumber, job.HeadSHA, run.outcome.Review, stats); err != nil {
		_ = p.gate.MarkJobDone(job.RepoFullName, job.PRNumber, job.HeadSHA, "failed")
		return fmt.Errorf("publish review: %w", err)
	}

	p.persistSuccess(job, run, stats)

	return p.gate.MarkJobDone(job.RepoFullName, job.PRNumber, job.HeadSHA, "done")
}

// runResult carries everything produced while running the agent over a
// sandbox, including the inputs persistSuccess needs to fill in the
// review row's diff/prompt/changed-line columns.
type runResult struct {
	outcome          agent.Outcome
	setup            sandbox.Result
	activeSkills     []string
	diff             string
	systemPrompt     string
	changedFileCount int
}

func (p *Processor) run(ctx context.Context, job domain.JobPayload) (runResult, error) {
	release, err := p.repoLock.Acquire(ctx, job.RepoFullName)
	if err != nil {
		return runResult{}, fmt.Errorf("acquire sandbox lock: %w", err)
	}
	defer release(context.Background())

	token, err := p.forge.MintInstallationToken(ctx, job.InstallationID)
	if err != nil {
		return runResult{}, fmt.Errorf("mint installation token: %w", err)
	}

	setup, err := p.sandboxes.Setup(ctx, job.RepoFullName, job.CloneURL, job.HeadRef, job.HeadSHA, token)
	if err != nil {
		return runResult{}, fmt.Errorf("sandbox setup: %w", err)
	}

	executor := tools.NewExecutor(p.sandboxes.WorkdirFor(job.RepoFullName))

	diff, err := executor.GitDiff(ctx, job.BaseSHA)
	if err != nil {
		return runResult{setup: setup}, fmt.Errorf("compute base diff: %w", err)
	}

	changedFiles := skills.ExtractChangedFiles(diff)
	composition := skills.Compose(changedFiles, job.PRTitle, job.PRBody)

	outcome, err := p.loop.Run(ctx, executor, composition.SystemPrompt, composition.Tools, diff)
	result := runResult{
		setup:            setup,
		activeSkills:     composition.ActiveSkillNames,
		diff:             diff,
		systemPrompt:     composition.SystemPrompt,
		changedFileCount: len(changedFiles),
	}
	if err != nil {
		return result, fmt.Errorf("agent loop: %w", err)
	}
	result.outcome = outcome

	return result, nil
}

func (p *Processor) persistSuccess(job domain.JobPayload, run runResult, stats publish.Stats) {
	repo, err := p.store.GetRepository(job.RepoFullName)
	if err != nil {
		log.Warn().Err(err).Str("repo", job.RepoFullName).Msg("could not resolve repository row for persistence")
		return
	}

	findingsJSON, _ := json.Marshal(run.outcome.Review.Findings)
	skillsJSON, _ := json.Marshal(stats.ActiveSkills)
	promptHash := sha256.Sum256([]byte(run.systemPrompt))
	added, deleted := skills.DiffStat(run.diff)

	row := &store.Review{
		RepositoryID:     repo.ID,
		PRNumber:         job.PRNumber,
		PRTitle:          job.PRTitle,
		PRBody:           job.PRBody,
		PRAuthor:         job.PRAuthor,
		HeadRef:          job.HeadRef,
		HeadSHA:          job.HeadSHA,
		BaseRef:          job.BaseRef,
		BaseSHA:          job.BaseSHA,
		Status:           "completed",
		Verdict:          string(run.outcome.Review.Verdict),
		Summary:          run.outcome.Review.Summary,
		FindingsJSON:     string(findingsJSON),
		Model:            p.cfg.ModelName,
		InputTokens:      stats.InputTokens,
		OutputTokens:     stats.OutputTokens,
		TotalDurationMs:  stats.WallTime.Milliseconds(),
		SetupDurationMs:  run.setup.DurationMs,
		SandboxWarm:      !run.setup.Cloned,
		FilesChanged:     run.changedFileCount,
		LinesAdded:       added,
		LinesDeleted:     deleted,
		ActiveSkillsJSON: string(skillsJSON),
		DiffText:         scrub.URL(run.diff),
		SystemPromptHash: hex.EncodeToString(promptHash[:]),
	}

	if err := p.store.InsertReview(row); err != nil {
		log.Error().Err(err).Msg("insert review")
		return
	}

	if len(run.outcome.Trace) == 0 {
		return
	}
	turns := make([]store.ReviewTraceTurn, len(run.outcome.Trace))
	for i, t := range run.outcome.Trace {
		turns[i] = store.ReviewTraceTurn{
			TurnNumber:   t.TurnNumber,
			Iteration:    t.Iteration,
			Role:         t.Role,
			Content:      t.Content,
			ToolName:     t.ToolName,
			ToolInput:    t.ToolInput,
			ToolResult:   t.ToolResult,
			InputTokens:  t.InputTokens,
			OutputTokens: t.OutputTokens,
		}
	}
	if err := p.store.InsertReviewTraces(row.ID, turns); err != nil {
		log.Error().Err(err).Msg("insert review traces")
	}
}

func (p *Processor) persistFailure(job domain.JobPayload, runErr error) {
	repo, err := p.store.GetRepository(job.RepoFullName)
	if err != nil {
		return
	}
	row := &store.Review{
		RepositoryID: repo.ID,
		PRNumber:     job.PRNumber,
		PRTitle:      job.PRTitle,
		HeadRef:      job.HeadRef,
		HeadSHA:      job.HeadSHA,
		BaseRef:      job.BaseRef,
		BaseSHA:      job.BaseSHA,
		Status:       "failed",
		ErrorMessage: runErr.Error(),
	}
	if err := p.store.InsertReview(row); err != nil {
		log.Error().Err(err).Msg("insert failed review")
	}
}
