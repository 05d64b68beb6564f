package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kirana-voice/internal/core"
)

// parseRemindAt accepts the classifier's RFC3339 datetime and rejects times
// already in the past.
func (e *Engine) parseRemindAt(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	if !t.After(time.Now()) {
		return time.Time{}, fmt.Errorf("reminder time %s is in the past", raw)
	}
	return t.In(e.deps.Location), nil
}

func (e *Engine) createReminder(ctx context.Context, req Request) Result {
	amount, okAmt := req.Entities.AmountValue()
	if !okAmt || amount.Sign() <= 0 {
		return fail(req.Intent, CodeMissingAmount, "Kitne paise ka reminder? Amount bataiye.")
	}
	if req.Entities.Datetime == "" {
		return fail(req.Intent, CodeMissingDatetime, "Kab yaad dilana hai? Time bataiye.")
	}
	remindAt, err := e.parseRemindAt(req.Entities.Datetime)
	if err != nil {
		return fail(req.Intent, CodeMissingDatetime, "Time samajh nahi aaya. Phir se boliye.")
	}

	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}
	// Reminders go out on WhatsApp, so a customer without a phone number
	// cannot receive one.
	if cust.Phone == "" {
		return fail(req.Intent, CodeMissingPhone,
			fmt.Sprintf("%s ka phone number nahi hai. Pehle number add karo.", cust.Name))
	}

	rem, err := e.deps.Reminders.CreateReminder(ctx, cust.ID, remindAt, amount.StringFixed(2), "whatsapp")
	if err != nil {
		return e.internalError(req, "create reminder", err)
	}
	if rem.Status == core.ReminderFailed {
		return fail(req.Intent, CodeInternal, "Reminder save hua par schedule nahi ho paya. Phir se try karo.")
	}
	return ok(req.Intent, ReminderData{Reminder: rem})
}

func (e *Engine) cancelReminder(ctx context.Context, req Request) Result {
	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}
	rem, err := e.deps.Reminders.CancelNext(ctx, cust.ID)
	if errors.Is(err, core.ErrReminderNotFound) {
		return fail(req.Intent, CodeNoReminder, fmt.Sprintf("%s ka koi reminder nahi hai.", cust.Name))
	}
	if err != nil {
		return e.internalError(req, "cancel reminder", err)
	}
	return ok(req.Intent, ReminderData{Reminder: rem})
}

func (e *Engine) modifyReminder(ctx context.Context, req Request) Result {
	if req.Entities.Datetime == "" {
		return fail(req.Intent, CodeMissingDatetime, "Naya time bataiye.")
	}
	remindAt, err := e.parseRemindAt(req.Entities.Datetime)
	if err != nil {
		return fail(req.Intent, CodeMissingDatetime, "Time samajh nahi aaya. Phir se boliye.")
	}
	cust, res := e.resolveCustomer(ctx, req)
	if res != nil {
		return *res
	}
	rem, err := e.deps.Reminders.RescheduleNext(ctx, cust.ID, remindAt)
	if errors.Is(err, core.ErrReminderNotFound) {
		return fail(req.Intent, CodeNoReminder, fmt.Sprintf("%s ka koi reminder nahi hai.", cust.Name))
	}
	if err != nil {
		return e.internalError(req, "reschedule reminder", err)
	}
	return ok(req.Intent, ReminderData{Reminder: rem})
}

func (e *Engine) listReminders(ctx context.Context, req Request) Result {
	reminders, err := e.deps.Reminders.ListReminders(ctx, 0, core.ReminderScheduled)
	if err != nil {
		return e.internalError(req, "list reminders", err)
	}
	return ok(req.Intent, ReminderListData{Reminders: reminders, Count: len(reminders)})
}
