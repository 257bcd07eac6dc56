// Package queueadapter wraps asynq as the durable queue adapter of
// spec.md §4.C: send only after the gate allows, deterministic task IDs
// for defense-in-depth dedup, and ack-drop semantics for poison messages.
package queueadapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/iemarjay/reviewbot/internal/domain"
	"github.com/iemarjay/reviewbot/internal/ingest"
)

// TypeReview is the asynq task type for a PR review job.
const TypeReview = "review:process"

// Queue sends validated jobs onto the durable queue.
type Queue struct {
	client    *asynq.Client
	queueName string
	maxRetry  int
}

// NewQueue builds a Queue against the given Redis connection options.
func NewQueue(redisOpt asynq.RedisClientOpt, queueName string, maxRetry int) *Queue {
	return &Queue{
		client:    asynq.NewClient(redisOpt),
		queueName: queueName,
		maxRetry:  maxRetry,
	}
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

// Send marshals job and enqueues it with a deterministic task ID derived
// from (repo, pr, sha), so a redelivered or re-webhooked duplicate lands
// on the same task instead of fanning out.
func (q *Queue) Send(job domain.JobPayload) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	task := asynq.NewTask(TypeReview, data)
	taskID := deterministicTaskID(job.RepoFullName, job.PRNumber, job.HeadSHA)

	_, err = q.client.Enqueue(task,
		asynq.Queue(q.queueName),
		asynq.TaskID(taskID),
		asynq.MaxRetry(q.maxRetry),
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

func deterministicTaskID(repoFullName string, prNumber int, headSHA string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d#%s", repoFullName, prNumber, headSHA)))
	return hex.EncodeToString(sum[:])
}

// ParseJob decodes an asynq task payload back into a domain.JobPayload.
func ParseJob(task *asynq.Task) (domain.JobPayload, error) {
	var job domain.JobPayload
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return domain.JobPayload{}, fmt.Errorf("unmarshal job payload: %w", err)
	}
	return job, nil
}

// NewServer builds the asynq background server that will run the
// review handler.
func NewServer(redisOpt asynq.RedisClientOpt, queueName string, concurrency int) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName: 1,
		},
	})
}

// Handler processes one review job end to end (components E-J).
type Handler func(ctx context.Context, job domain.JobPayload) error

// NewMux wires handler under TypeReview, discarding (acking) malformed
// payloads instead of requesting redelivery, since retrying a payload
// that never parses cannot help (spec.md §4.C).
func NewMux(handler Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReview, func(ctx context.Context, task *asynq.Task) error {
		job, err := ParseJob(task)
		if err != nil {
			return nil
		}
		if err := ingest.ValidateJobPayload(job); err != nil {
			return nil
		}
		if err := handler(ctx, job); err != nil {
			return fmt.Errorf("process review job: %w", err)
		}
		return nil
	})
	return mux
}
