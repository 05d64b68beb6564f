package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"kirana-voice/internal/core"
)

// TextSender delivers the reminder message; internal/notify.WhatsApp
// satisfies it.
type TextSender interface {
	SendText(ctx context.Context, phone, text string) error
}

// SummaryMailer mails the end-of-day figures; internal/notify.Mailer
// satisfies it.
type SummaryMailer interface {
	SendDailySummary(ctx context.Context, to string, s *core.DailySummary) error
}

// ReminderStore is the slice of core.ReminderService the worker needs.
type ReminderStore interface {
	GetReminder(ctx context.Context, id int64) (*core.Reminder, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

// CustomerLoader is the slice of core.CustomerService the worker needs.
type CustomerLoader interface {
	GetCustomer(ctx context.Context, id int64) (*core.Customer, error)
}

// SummarySource is satisfied by core.SummaryService.
type SummarySource interface {
	DailySummary(ctx context.Context, day time.Time) (*core.DailySummary, error)
}

// WorkerConfig wires the handlers to their stores and senders.
type WorkerConfig struct {
	Redis       asynq.RedisClientOpt
	Reminders   ReminderStore
	Customers   CustomerLoader
	Summary     SummarySource
	WhatsApp    TextSender
	Mailer      SummaryMailer
	AdminEmail  string
	ShopName    string
	SummaryHour int
	Location    *time.Location
	Log         zerolog.Logger
}

// Worker consumes the queues and owns the daily summary schedule.
type Worker struct {
	cfg       WorkerConfig
	server    *asynq.Server
	scheduler *asynq.Scheduler
	log       zerolog.Logger
}

func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Location == nil {
		cfg.Location = time.FixedZone("IST", 5*3600+1800)
	}
	w := &Worker{cfg: cfg, log: cfg.Log.With().Str("component", "worker").Logger()}

	w.server = asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			queueReminders: 6,
			"default":      3,
		},
		Logger: asynqLogger{w.log},
	})
	w.scheduler = asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{
		Location: cfg.Location,
		Logger:   asynqLogger{w.log},
	})
	return w
}

// Run blocks until ctx is cancelled. The daily summary fires at the
// configured shop-close hour when an admin address is set.
func (w *Worker) Run(ctx context.Context) error {
	if w.cfg.AdminEmail != "" {
		spec := fmt.Sprintf("0 %d * * *", w.cfg.SummaryHour)
		if _, err := w.scheduler.Register(spec, asynq.NewTask(TypeDailySummary, nil)); err != nil {
			return fmt.Errorf("failed to register daily summary schedule: %w", err)
		}
		if err := w.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer w.scheduler.Shutdown()
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReminderDeliver, w.handleReminder)
	mux.HandleFunc(TypeDailySummary, w.handleDailySummary)

	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

// handleReminder sends the WhatsApp payment nudge for a due reminder.
// Send failures mark the row FAILED and are retried by asynq; a reminder
// cancelled or already handled since scheduling is skipped silently.
func (w *Worker) handleReminder(ctx context.Context, task *asynq.Task) error {
	var payload reminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("bad reminder payload: %v: %w", err, asynq.SkipRetry)
	}
	log := w.log.With().Int64("reminder_id", payload.ReminderID).Logger()

	rem, err := w.cfg.Reminders.GetReminder(ctx, payload.ReminderID)
	if errors.Is(err, core.ErrReminderNotFound) {
		log.Info().Msg("reminder row gone, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", payload.ReminderID, err)
	}
	if rem.Status != core.ReminderScheduled {
		log.Info().Str("status", rem.Status).Msg("reminder no longer scheduled, skipping")
		return nil
	}

	cust, err := w.cfg.Customers.GetCustomer(ctx, rem.CustomerID)
	if errors.Is(err, core.ErrCustomerNotFound) {
		log.Info().Msg("customer deleted, dropping reminder")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load customer %d: %w", rem.CustomerID, err)
	}
	if cust.Phone == "" {
		log.Warn().Msg("customer has no phone, cannot deliver")
		if merr := w.cfg.Reminders.MarkFailed(ctx, rem.ID); merr != nil {
			log.Error().Err(merr).Msg("failed to mark reminder failed")
		}
		return nil
	}

	if err := w.cfg.WhatsApp.SendText(ctx, cust.Phone, reminderText(cust.Name, rem.Notes, w.cfg.ShopName)); err != nil {
		if merr := w.cfg.Reminders.MarkFailed(ctx, rem.ID); merr != nil {
			log.Error().Err(merr).Msg("failed to mark reminder failed")
		}
		return fmt.Errorf("failed to deliver reminder %d: %w", rem.ID, err)
	}
	if err := w.cfg.Reminders.MarkSent(ctx, rem.ID); err != nil {
		return fmt.Errorf("failed to mark reminder %d sent: %w", rem.ID, err)
	}
	log.Info().Str("phone", cust.Phone).Msg("reminder delivered")
	return nil
}

func (w *Worker) handleDailySummary(ctx context.Context, _ *asynq.Task) error {
	if w.cfg.AdminEmail == "" {
		return nil
	}
	day := time.Now().In(w.cfg.Location)
	summary, err := w.cfg.Summary.DailySummary(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to build daily summary: %w", err)
	}
	if err := w.cfg.Mailer.SendDailySummary(ctx, w.cfg.AdminEmail, summary); err != nil {
		return fmt.Errorf("failed to mail daily summary: %w", err)
	}
	w.log.Info().Str("date", summary.Date).Msg("daily summary mailed")
	return nil
}

// reminderText is the spoken-register WhatsApp nudge. Notes hold the amount
// the engine recorded at creation time.
func reminderText(name, amount, shopName string) string {
	if amount != "" {
		return fmt.Sprintf("Namaste %s ji! %s ka Rs. %s baaki hai. Kripya jama kar dein. Dhanyavaad!",
			name, shopName, amount)
	}
	return fmt.Sprintf("Namaste %s ji! %s ka hisaab baaki hai. Kripya jama kar dein. Dhanyavaad!",
		name, shopName)
}

// asynqLogger adapts zerolog to asynq's logger interface.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
