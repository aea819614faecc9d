package web

import (
	"net/http"

	"cafe-ledger/internal/core"
)

// listReceivables handles GET /api/receivables?status=OPEN|SETTLED.
func (h *Handler) listReceivables(w http.ResponseWriter, r *http.Request) {
	var status *core.ReceivableStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := core.ReceivableStatus(v)
		if s != core.ReceivableOpen && s != core.ReceivableSettled {
			writeError(w, r, "invalid status filter", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		status = &s
	}
	receivables, err := h.receivables.GetReceivables(r.Context(), status)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if receivables == nil {
		receivables = []core.Receivable{}
	}
	writeJSON(w, receivables)
}

// getReceivable handles GET /api/receivables/{id}.
func (h *Handler) getReceivable(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	rcv, err := h.receivables.GetReceivable(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, rcv)
}

// listPayments handles GET /api/receivables/{id}/payments.
func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	payments, err := h.receivables.GetPayments(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if payments == nil {
		payments = []core.Payment{}
	}
	writeJSON(w, payments)
}

// recordPayment handles POST /api/receivables/{id}/payments.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Amount int64            `json:"amount"`
		Method core.PaymentType `json:"method"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rcv, err := h.receivables.RecordPayment(r.Context(), id, req.Amount, req.Method)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, rcv, http.StatusCreated)
}
