package web

import (
	"net/http"
	"strconv"

	"kirana-voice/internal/core"
)

// listInvoices handles GET /api/v1/invoices?customerId=&limit=.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	var customerID int64
	if v := r.URL.Query().Get("customerId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, "invalid customerId", http.StatusBadRequest)
			return
		}
		customerID = id
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	invoices, err := h.invoices.ListInvoices(r.Context(), customerID, limit)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	if invoices == nil {
		invoices = []core.Invoice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

type invoiceItemRequest struct {
	Name      string `json:"name" validate:"required"`
	Quantity  string `json:"quantity" validate:"required"`
	Unit      string `json:"unit"`
	UnitPrice string `json:"unitPrice"`
}

type createInvoiceRequest struct {
	CustomerID int64                `json:"customerId" validate:"required,gt=0"`
	Items      []invoiceItemRequest `json:"items" validate:"required,min=1,dive"`
	WithGST    bool                 `json:"withGst"`
	SupplyType string               `json:"supplyType" validate:"omitempty,oneof=INTRASTATE INTERSTATE"`
	Notes      string               `json:"notes" validate:"omitempty,max=500"`
}

// createInvoice handles POST /api/v1/invoices: price the items and commit
// in one step. The draft/confirm dance belongs to the voice flow; the REST
// caller has already reviewed the numbers.
func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	customer, err := h.customers.GetCustomer(r.Context(), req.CustomerID)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}

	items := make([]core.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		item := core.ItemInput{Name: it.Name, Unit: it.Unit}
		var ok bool
		if item.Quantity, ok = parseAmount(w, "quantity", it.Quantity, true); !ok {
			return
		}
		if item.UnitPrice, ok = parseAmount(w, "unitPrice", it.UnitPrice, false); !ok {
			return
		}
		items = append(items, item)
	}

	supplyType := req.SupplyType
	if supplyType == "" {
		supplyType = core.SupplyIntrastate
	}
	preview, err := h.invoices.PreviewInvoice(r.Context(), customer, items, req.WithGST, supplyType)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	invoice, err := h.invoices.ConfirmInvoice(r.Context(), preview, req.Notes)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": invoice})
}

// cancelInvoice handles POST /api/v1/invoices/{id}/cancel.
func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, "invalid invoice id", http.StatusBadRequest)
		return
	}
	invoice, err := h.invoices.CancelInvoice(r.Context(), id)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}
