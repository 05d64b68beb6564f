package web

import (
	"net/http"
	"strconv"

	"kirana-voice/internal/core"
)

type paymentRequest struct {
	CustomerID  int64  `json:"customerId" validate:"required,gt=0"`
	Amount      string `json:"amount" validate:"required"`
	PaymentMode string `json:"paymentMode" validate:"omitempty,oneof=cash upi card other"`
	Notes       string `json:"notes" validate:"omitempty,max=500"`
}

// recordPayment handles POST /api/v1/ledger/payment.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	amount, ok := parseAmount(w, "amount", req.Amount, true)
	if !ok {
		return
	}
	if amount.Sign() <= 0 {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	entry, err := h.ledger.RecordPayment(r.Context(), req.CustomerID, amount, req.PaymentMode, req.Notes)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

type creditRequest struct {
	CustomerID  int64  `json:"customerId" validate:"required,gt=0"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"required,max=500"`
}

// addCredit handles POST /api/v1/ledger/credit.
func (h *Handler) addCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	amount, ok := parseAmount(w, "amount", req.Amount, true)
	if !ok {
		return
	}
	if amount.Sign() <= 0 {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	entry, err := h.ledger.AddCredit(r.Context(), req.CustomerID, amount, req.Description)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

// customerLedger handles GET /api/v1/ledger/{customerID}?limit=.
func (h *Handler) customerLedger(w http.ResponseWriter, r *http.Request) {
	customerID, ok := idParam(r, "customerID")
	if !ok {
		writeError(w, "invalid customer id", http.StatusBadRequest)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	// 404 for a customer that never existed, empty list otherwise.
	if _, err := h.customers.GetCustomer(r.Context(), customerID); err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	entries, err := h.ledger.EntriesForCustomer(r.Context(), customerID, limit)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	if entries == nil {
		entries = []core.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
