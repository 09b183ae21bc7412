package handlers

import (
	"net/http"

	"expense-tracker/internal/log"
)

// ExpenseReport returns the caller's per-category totals, optionally bounded
// by start_date and end_date. A category query parameter is ignored.
func (h *Handlers) ExpenseReport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user := GetUserFromContext(r)
	totals, err := h.reports.TotalsByCategory(r.Context(), user.ID, filter.StartDate, filter.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentReport).Debug("Report generated",
		"categories", len(totals))
	writeJSON(w, http.StatusOK, totals)
}
