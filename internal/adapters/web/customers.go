package web

import (
	"net/http"

	"kirana-voice/internal/core"
)

// searchCustomers handles GET /api/v1/customers/search?q=…
func (h *Handler) searchCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, "query parameter q is required", http.StatusBadRequest)
		return
	}
	ranked, err := h.customers.SearchCustomer(r.Context(), q)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	if ranked == nil {
		ranked = []core.RankedCustomer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": ranked})
}

// getCustomer handles GET /api/v1/customers/{id} — the customer with their
// last five invoices and scheduled reminders.
func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, "invalid customer id", http.StatusBadRequest)
		return
	}
	customer, err := h.customers.GetCustomer(r.Context(), id)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	invoices, err := h.invoices.ListInvoices(r.Context(), id, 5)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	reminders, err := h.reminders.ListReminders(r.Context(), id, core.ReminderScheduled)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customer":  customer,
		"invoices":  invoices,
		"reminders": reminders,
	})
}

type createCustomerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Phone    string `json:"phone" validate:"omitempty,numeric,min=10,max=12"`
	Nickname string `json:"nickname" validate:"omitempty,max=50"`
	Landmark string `json:"landmark" validate:"omitempty,max=100"`
}

// createCustomer handles POST /api/v1/customers.
func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	customer, err := h.customers.CreateCustomer(r.Context(), req.Name, req.Phone, req.Nickname, req.Landmark)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}
