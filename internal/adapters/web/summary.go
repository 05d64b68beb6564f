package web

import (
	"net/http"
	"time"
)

// dailySummary handles GET /api/v1/summary/daily?date=YYYY-MM-DD. No date
// means today in the shop's timezone.
func (h *Handler) dailySummary(w http.ResponseWriter, r *http.Request) {
	day := time.Now().In(h.loc)
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			writeError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = parsed
	}
	summary, err := h.summary.DailySummary(r.Context(), day)
	if err != nil {
		writeCoreError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}
