// Package jobs schedules and delivers background work on Redis via asynq:
// due payment reminders and the end-of-day summary mail.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"kirana-voice/internal/core"
)

// Task types.
const (
	TypeReminderDeliver = "reminder:deliver"
	TypeDailySummary    = "summary:daily"
)

// queueReminders is the asynq queue reminders run on, separate from default
// so a flood of other work cannot delay a due reminder.
const queueReminders = "reminders"

type reminderPayload struct {
	ReminderID int64 `json:"reminder_id"`
}

// Queue is the enqueue/cancel side, wired into core.ReminderService as its
// ReminderQueue.
type Queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	log       zerolog.Logger
}

func NewQueue(redis asynq.RedisClientOpt, log zerolog.Logger) *Queue {
	return &Queue{
		client:    asynq.NewClient(redis),
		inspector: asynq.NewInspector(redis),
		log:       log.With().Str("component", "jobs").Logger(),
	}
}

// Enqueue schedules delivery at r.RemindAt. The returned asynq task id is
// stored on the reminder row so a later cancel can find it.
func (q *Queue) Enqueue(ctx context.Context, r *core.Reminder) (string, error) {
	payload, err := json.Marshal(reminderPayload{ReminderID: r.ID})
	if err != nil {
		return "", fmt.Errorf("failed to encode reminder payload: %w", err)
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TypeReminderDeliver, payload),
		asynq.Queue(queueReminders),
		asynq.ProcessAt(r.RemindAt),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue reminder %d: %w", r.ID, err)
	}
	q.log.Info().Int64("reminder_id", r.ID).Str("job_id", info.ID).Time("at", r.RemindAt).Msg("reminder scheduled")
	return info.ID, nil
}

// Cancel removes a scheduled job. A job already gone (delivered, or never
// enqueued) is not an error.
func (q *Queue) Cancel(_ context.Context, jobID string) error {
	err := q.inspector.DeleteTask(queueReminders, jobID)
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("failed to cancel job %s: %w", jobID, err)
}

func (q *Queue) Close() error {
	return q.client.Close()
}
