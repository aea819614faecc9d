package web

import (
	"net/http"
	"time"

	"cafe-ledger/internal/core"

	"github.com/go-chi/chi/v5"
)

// listExpenses handles GET /api/expenses?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Both bounds default to today, so the bare endpoint reports today's spend.
func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	today := core.DayOf(time.Now())
	from := r.URL.Query().Get("from")
	if from == "" {
		from = today
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		to = today
	}
	summary, err := h.expenses.ListExpenses(r.Context(), from, to)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if summary.Items == nil {
		summary.Items = []core.ExpenseWindowItem{}
	}
	writeJSON(w, summary)
}

// createExpense handles POST /api/expenses.
func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var req core.CreateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	expense, err := h.expenses.CreateExpense(r.Context(), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, expense, http.StatusCreated)
}

// updateExpense handles PATCH /api/expenses/{id}.
func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req core.UpdateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	expense, err := h.expenses.UpdateExpense(r.Context(), id, req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, expense)
}

// deleteExpense handles DELETE /api/expenses/{id}.
func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.expenses.DeleteExpense(r.Context(), id); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listExpenseCategories handles GET /api/expense-categories.
func (h *Handler) listExpenseCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.settings.ExpenseCategories(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeStringList(w, categories)
}

// addExpenseCategory handles POST /api/expense-categories.
func (h *Handler) addExpenseCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	categories, err := h.settings.AddExpenseCategory(r.Context(), req.Category)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeStringList(w, categories)
}

// removeExpenseCategory handles DELETE /api/expense-categories/{category}.
func (h *Handler) removeExpenseCategory(w http.ResponseWriter, r *http.Request) {
	categories, err := h.settings.RemoveExpenseCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeStringList(w, categories)
}
