package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"kirana-voice/internal/core"
)

// listProducts handles GET /api/v1/products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListProducts(r.Context())
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	if products == nil {
		products = []core.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// lowStock handles GET /api/v1/products/low-stock.
func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.LowStock(r.Context())
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	if products == nil {
		products = []core.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

type createProductRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=100"`
	Unit      string `json:"unit" validate:"omitempty,max=20"`
	HSNCode   string `json:"hsnCode" validate:"omitempty,max=10"`
	Price     string `json:"price" validate:"required"`
	Stock     string `json:"stock" validate:"omitempty"`
	GSTRate   string `json:"gstRate" validate:"omitempty"`
	CessRate  string `json:"cessRate" validate:"omitempty"`
	GSTExempt bool   `json:"gstExempt"`
}

// createProduct handles POST /api/v1/products. Monetary fields arrive as
// decimal strings per the API convention.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	input := core.ProductInput{
		Name:      req.Name,
		Unit:      req.Unit,
		HSNCode:   req.HSNCode,
		GSTExempt: req.GSTExempt,
	}
	var ok bool
	if input.Price, ok = parseAmount(w, "price", req.Price, true); !ok {
		return
	}
	if input.Stock, ok = parseAmount(w, "stock", req.Stock, false); !ok {
		return
	}
	if input.GSTRate, ok = parseAmount(w, "gstRate", req.GSTRate, false); !ok {
		return
	}
	if input.CessRate, ok = parseAmount(w, "cessRate", req.CessRate, false); !ok {
		return
	}

	product, err := h.products.CreateProduct(r.Context(), input)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

// parseAmount parses a decimal-string field, writing the 400 itself on
// failure. Empty optional fields come back zero.
func parseAmount(w http.ResponseWriter, field, value string, required bool) (decimal.Decimal, bool) {
	if value == "" {
		if required {
			writeError(w, field+" is required", http.StatusBadRequest)
			return decimal.Zero, false
		}
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		writeError(w, field+" is not a valid decimal", http.StatusBadRequest)
		return decimal.Zero, false
	}
	if d.Sign() < 0 {
		writeError(w, field+" must not be negative", http.StatusBadRequest)
		return decimal.Zero, false
	}
	return d, true
}
