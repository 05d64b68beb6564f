package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ReminderQueue schedules reminder deliveries on a background queue. The
// asynq-backed implementation lives in internal/jobs; tests substitute a fake.
type ReminderQueue interface {
	// Enqueue schedules delivery at r.RemindAt and returns the queue's job id.
	Enqueue(ctx context.Context, r *Reminder) (string, error)
	// Cancel removes a previously enqueued job. Unknown ids are not an error:
	// the job may already have run.
	Cancel(ctx context.Context, jobID string) error
}

type ReminderService interface {
	// CreateReminder stores the reminder and enqueues delivery. If enqueueing
	// fails the row is kept with status FAILED so the shopkeeper can retry.
	CreateReminder(ctx context.Context, customerID int64, remindAt time.Time, notes, channel string) (*Reminder, error)
	// CancelNext cancels the customer's next due SCHEDULED reminder.
	CancelNext(ctx context.Context, customerID int64) (*Reminder, error)
	// Cancel cancels a specific reminder. ErrReminderNotFound when the row
	// is missing or no longer scheduled.
	Cancel(ctx context.Context, id int64) (*Reminder, error)
	// RescheduleNext moves the customer's next due SCHEDULED reminder to a
	// new time, re-enqueueing delivery.
	RescheduleNext(ctx context.Context, customerID int64, remindAt time.Time) (*Reminder, error)
	ListReminders(ctx context.Context, customerID int64, status string) ([]Reminder, error)
	GetReminder(ctx context.Context, id int64) (*Reminder, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

type reminderService struct {
	pool  *pgxpool.Pool
	queue ReminderQueue
	log   zerolog.Logger
}

func NewReminderService(pool *pgxpool.Pool, queue ReminderQueue, log zerolog.Logger) ReminderService {
	return &reminderService{pool: pool, queue: queue, log: log}
}

const reminderColumns = `r.id, r.customer_id, c.name, r.remind_at, r.notes, r.channel,
	r.status, r.external_job_id, r.created_at, r.updated_at`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var r Reminder
	err := row.Scan(&r.ID, &r.CustomerID, &r.CustomerName, &r.RemindAt, &r.Notes,
		&r.Channel, &r.Status, &r.ExternalJobID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *reminderService) CreateReminder(ctx context.Context, customerID int64, remindAt time.Time, notes, channel string) (*Reminder, error) {
	if remindAt.Before(time.Now()) {
		return nil, fmt.Errorf("reminder time %s is in the past", remindAt.Format(time.RFC3339))
	}
	if channel == "" {
		channel = "whatsapp"
	}

	var r Reminder
	err := s.pool.QueryRow(ctx, `
		INSERT INTO reminders (customer_id, remind_at, notes, channel, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, customerID, remindAt, notes, channel, ReminderScheduled).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reminder: %w", err)
	}
	r.CustomerID = customerID
	r.RemindAt = remindAt
	r.Notes = notes
	r.Channel = channel
	r.Status = ReminderScheduled

	jobID, err := s.queue.Enqueue(ctx, &r)
	if err != nil {
		s.log.Error().Err(err).Int64("reminder_id", r.ID).Msg("failed to enqueue reminder delivery")
		if _, uerr := s.pool.Exec(ctx,
			"UPDATE reminders SET status = $2, updated_at = NOW() WHERE id = $1",
			r.ID, ReminderFailed); uerr != nil {
			s.log.Error().Err(uerr).Int64("reminder_id", r.ID).Msg("failed to mark reminder failed")
		}
		r.Status = ReminderFailed
		return &r, nil
	}

	if _, err = s.pool.Exec(ctx,
		"UPDATE reminders SET external_job_id = $2, updated_at = NOW() WHERE id = $1",
		r.ID, jobID); err != nil {
		return nil, fmt.Errorf("failed to store reminder job id: %w", err)
	}
	r.ExternalJobID = jobID
	return &r, nil
}

// nextScheduled fetches the customer's earliest still-scheduled reminder,
// which is the one the shopkeeper means by "the reminder".
func (s *reminderService) nextScheduled(ctx context.Context, customerID int64) (*Reminder, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders r JOIN customers c ON c.id = r.customer_id
		WHERE r.customer_id = $1 AND r.status = $2
		ORDER BY r.remind_at ASC
		LIMIT 1`, customerID, ReminderScheduled)
	r, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("failed to fetch scheduled reminder: %w", err)
	}
	return r, nil
}

func (s *reminderService) CancelNext(ctx context.Context, customerID int64) (*Reminder, error) {
	r, err := s.nextScheduled(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, r)
}

func (s *reminderService) Cancel(ctx context.Context, id int64) (*Reminder, error) {
	r, err := s.GetReminder(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != ReminderScheduled {
		return nil, ErrReminderNotFound
	}
	return s.cancel(ctx, r)
}

func (s *reminderService) cancel(ctx context.Context, r *Reminder) (*Reminder, error) {
	if r.ExternalJobID != "" {
		if err := s.queue.Cancel(ctx, r.ExternalJobID); err != nil {
			s.log.Warn().Err(err).Str("job_id", r.ExternalJobID).Msg("failed to cancel queued reminder job")
		}
	}
	if _, err := s.pool.Exec(ctx,
		"UPDATE reminders SET status = $2, updated_at = NOW() WHERE id = $1",
		r.ID, ReminderCancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel reminder %d: %w", r.ID, err)
	}
	r.Status = ReminderCancelled
	return r, nil
}

func (s *reminderService) RescheduleNext(ctx context.Context, customerID int64, remindAt time.Time) (*Reminder, error) {
	if remindAt.Before(time.Now()) {
		return nil, fmt.Errorf("reminder time %s is in the past", remindAt.Format(time.RFC3339))
	}

	r, err := s.nextScheduled(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if r.ExternalJobID != "" {
		if err := s.queue.Cancel(ctx, r.ExternalJobID); err != nil {
			s.log.Warn().Err(err).Str("job_id", r.ExternalJobID).Msg("failed to cancel queued reminder job")
		}
	}

	r.RemindAt = remindAt
	jobID, err := s.queue.Enqueue(ctx, r)
	if err != nil {
		s.log.Error().Err(err).Int64("reminder_id", r.ID).Msg("failed to re-enqueue reminder")
		if _, uerr := s.pool.Exec(ctx,
			"UPDATE reminders SET remind_at = $2, status = $3, updated_at = NOW() WHERE id = $1",
			r.ID, remindAt, ReminderFailed); uerr != nil {
			s.log.Error().Err(uerr).Int64("reminder_id", r.ID).Msg("failed to mark reminder failed")
		}
		r.Status = ReminderFailed
		return r, nil
	}

	if _, err = s.pool.Exec(ctx,
		"UPDATE reminders SET remind_at = $2, external_job_id = $3, updated_at = NOW() WHERE id = $1",
		r.ID, remindAt, jobID); err != nil {
		return nil, fmt.Errorf("failed to reschedule reminder %d: %w", r.ID, err)
	}
	r.ExternalJobID = jobID
	return r, nil
}

func (s *reminderService) ListReminders(ctx context.Context, customerID int64, status string) ([]Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders r JOIN customers c ON c.id = r.customer_id`
	var (
		conds []string
		args  []any
	)
	if customerID > 0 {
		args = append(args, customerID)
		conds = append(conds, fmt.Sprintf("r.customer_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		conds = append(conds, fmt.Sprintf("r.status = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY r.remind_at ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.CustomerName, &r.RemindAt, &r.Notes,
			&r.Channel, &r.Status, &r.ExternalJobID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, nil
}

func (s *reminderService) GetReminder(ctx context.Context, id int64) (*Reminder, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders r JOIN customers c ON c.id = r.customer_id
		WHERE r.id = $1`, id)
	r, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("failed to fetch reminder %d: %w", id, err)
	}
	return r, nil
}

func (s *reminderService) MarkSent(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, ReminderSent)
}

func (s *reminderService) MarkFailed(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, ReminderFailed)
}

func (s *reminderService) setStatus(ctx context.Context, id int64, status string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE reminders SET status = $2, updated_at = NOW() WHERE id = $1",
		id, status)
	if err != nil {
		return fmt.Errorf("failed to update reminder %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}
