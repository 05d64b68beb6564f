package web

import (
	"net/http"
	"strconv"
	"time"

	"kirana-voice/internal/core"
)

// listReminders handles GET /api/v1/reminders?customerId=&status=.
func (h *Handler) listReminders(w http.ResponseWriter, r *http.Request) {
	var customerID int64
	if v := r.URL.Query().Get("customerId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, "invalid customerId", http.StatusBadRequest)
			return
		}
		customerID = id
	}
	reminders, err := h.reminders.ListReminders(r.Context(), customerID, r.URL.Query().Get("status"))
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	if reminders == nil {
		reminders = []core.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": reminders})
}

type createReminderRequest struct {
	CustomerID int64  `json:"customerId" validate:"required,gt=0"`
	RemindAt   string `json:"remindAt" validate:"required"`
	Notes      string `json:"notes" validate:"omitempty,max=500"`
	Channel    string `json:"channel" validate:"omitempty,oneof=whatsapp sms"`
}

// createReminder handles POST /api/v1/reminders.
func (h *Handler) createReminder(w http.ResponseWriter, r *http.Request) {
	var req createReminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	remindAt, err := time.Parse(time.RFC3339, req.RemindAt)
	if err != nil {
		writeError(w, "remindAt must be an RFC 3339 timestamp", http.StatusBadRequest)
		return
	}
	if !remindAt.After(time.Now()) {
		writeError(w, "remindAt must be in the future", http.StatusBadRequest)
		return
	}
	reminder, err := h.reminders.CreateReminder(r.Context(), req.CustomerID, remindAt, req.Notes, req.Channel)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"reminder": reminder})
}

// cancelReminder handles POST /api/v1/reminders/{id}/cancel.
func (h *Handler) cancelReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, "invalid reminder id", http.StatusBadRequest)
		return
	}
	reminder, err := h.reminders.Cancel(r.Context(), id)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminder": reminder})
}
