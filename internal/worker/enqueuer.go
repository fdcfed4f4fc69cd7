// Package worker drains the send queue: it renders each queued recipient's
// email, injects tracking, delivers through the configured sender, and
// settles the email log row. A scheduler tick promotes due scheduled
// campaigns into the same pipeline.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/pulsemail/internal/domain"
)

// SendJob is one queued delivery. It carries the id of the email_logs row
// minted at enqueue time so processing and counting converge on one row.
type SendJob struct {
	LogID      string `json:"log_id"`
	CampaignID string `json:"campaign_id"`
	RunID      string `json:"run_id"`
	ContactID  string `json:"contact_id"`
	Email      string `json:"email"`
}

// LogWriter persists the pending snapshot rows behind an enqueue.
type LogWriter interface {
	InsertLogs(ctx context.Context, logs []domain.EmailLog) error
}

// RedisEnqueuer snapshots a run's recipients into email_logs and pushes one
// send job per recipient onto a Redis list.
type RedisEnqueuer struct {
	rdb      *redis.Client
	logs     LogWriter
	queueKey string
}

// NewRedisEnqueuer creates an enqueuer writing jobs to the given list key.
func NewRedisEnqueuer(rdb *redis.Client, logs LogWriter, queueKey string) *RedisEnqueuer {
	return &RedisEnqueuer{rdb: rdb, logs: logs, queueKey: queueKey}
}

// EnqueueRun writes the pending snapshot first and only then queues the
// jobs. A crash between the two leaves pending rows with no job, which a
// rerun recovers; the reverse order could deliver email that was never
// recorded.
func (e *RedisEnqueuer) EnqueueRun(ctx context.Context, c *domain.Campaign, run *domain.CampaignRun, contacts []domain.Contact) (int, error) {
	runID := run.ID
	logs := make([]domain.EmailLog, 0, len(contacts))
	payloads := make([]interface{}, 0, len(contacts))

	for _, ct := range contacts {
		id := uuid.New().String()
		logs = append(logs, domain.EmailLog{
			ID:         id,
			CampaignID: c.ID,
			ContactID:  ct.ID,
			RunID:      &runID,
			Email:      ct.Email,
			Status:     domain.EmailPending,
		})
		b, err := json.Marshal(SendJob{
			LogID:      id,
			CampaignID: c.ID,
			RunID:      runID,
			ContactID:  ct.ID,
			Email:      ct.Email,
		})
		if err != nil {
			return 0, fmt.Errorf("marshal send job: %w", err)
		}
		payloads = append(payloads, b)
	}

	if err := e.logs.InsertLogs(ctx, logs); err != nil {
		return 0, fmt.Errorf("snapshot run: %w", err)
	}
	if len(payloads) > 0 {
		if err := e.rdb.LPush(ctx, e.queueKey, payloads...).Err(); err != nil {
			return 0, fmt.Errorf("queue send jobs: %w", err)
		}
	}
	return len(contacts), nil
}
