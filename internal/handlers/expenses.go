package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"expense-tracker/internal/events"
	"expense-tracker/internal/export"
	"expense-tracker/internal/log"
	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"
)

// expenseFields decodes the mutable expense members of a request body.
func expenseFields(fields map[string]json.RawMessage) (models.ExpensePatch, error) {
	var p models.ExpensePatch
	if err := decodeField(fields, "amount", CodeInvalidAmount, &p.Amount); err != nil {
		return p, err
	}
	if err := decodeField(fields, "description", CodeInvalidDescription, &p.Description); err != nil {
		return p, err
	}
	if err := decodeField(fields, "date", CodeInvalidDate, &p.Date); err != nil {
		return p, err
	}
	if err := decodeField(fields, "category", CodeInvalidCategory, &p.Category); err != nil {
		return p, err
	}
	if err := decodeField(fields, "recurrence_flag", CodeInvalidRecurrence, &p.RecurrenceFlag); err != nil {
		return p, err
	}

	if p.Date.IsSet() {
		canonical, err := normalizeDate(p.Date.Value, CodeInvalidDate, "date")
		if err != nil {
			return p, err
		}
		p.Date.Value = canonical
	}
	if p.RecurrenceFlag.IsSet() && !p.RecurrenceFlag.Value.Valid() {
		return p, badRequest(CodeInvalidRecurrence,
			"invalid recurrence_flag %q: must be one of none, daily, weekly, monthly, yearly", p.RecurrenceFlag.Value)
	}
	return p, nil
}

// loadOwned fetches the expense named by the path and checks that the
// caller owns it.
func (h *Handlers) loadOwned(r *http.Request) (*models.Expense, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}

	e, err := h.store.GetExpense(r.Context(), id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err := h.guard.CheckAccess(e, GetUserFromContext(r)); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateExpense handles the creation of a new expense.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	fields, err := decodeObject(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := expenseFields(fields)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var missing []string
	if !p.Amount.IsSet() {
		missing = append(missing, "amount")
	}
	if !p.Description.IsSet() {
		missing = append(missing, "description")
	}
	if !p.Date.IsSet() {
		missing = append(missing, "date")
	}
	if !p.Category.IsSet() {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		writeError(w, r, missingFields(missing))
		return
	}

	e := models.Expense{UserID: user.ID}
	p.Apply(&e)

	created, err := h.store.CreateExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentExpense).Info("Expense created",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, created.ID)
	h.publish(r.Context(), events.ExpenseCreated, created)

	writeJSON(w, http.StatusCreated, created)
}

// ListExpenses returns the caller's expenses, newest first.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	expenses, err := h.store.ListExpensesByOwner(r.Context(), GetUserFromContext(r).ID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

// GetExpense returns one expense owned by the caller.
func (h *Handlers) GetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := h.loadOwned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// UpdateExpense applies a partial update. Absent fields keep their value.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	e, err := h.loadOwned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fields, err := decodeObject(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := expenseFields(fields)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.store.UpdateExpense(r.Context(), e.ID, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentExpense).Info("Expense updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldExpenseID, updated.ID)
	h.publish(r.Context(), events.ExpenseUpdated, updated)

	writeJSON(w, http.StatusOK, updated)
}

// DeleteExpense removes an expense owned by the caller.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	e, err := h.loadOwned(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.store.DeleteExpense(r.Context(), e.ID); err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentExpense).Info("Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, e.ID)
	h.publish(r.Context(), events.ExpenseDeleted, e)

	w.WriteHeader(http.StatusNoContent)
}

// ExportExpenses streams the caller's filtered expenses as CSV or XLSX.
func (h *Handlers) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, badRequest(CodeInvalidFormat, "%s", err.Error()))
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	expenses, err := h.store.ListExpensesByOwner(r.Context(), GetUserFromContext(r).ID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := export.Render(format, expenses)
	if err != nil {
		writeError(w, r, fmt.Errorf("render %s export: %w", format, err))
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentExpense).Info("Expenses exported",
		log.FieldOperation, log.OpExport,
		"format", format,
		"count", len(expenses))

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
