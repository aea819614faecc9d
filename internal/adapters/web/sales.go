package web

import (
	"errors"
	"net/http"
	"strconv"

	"cafe-ledger/internal/core"
)

// listSales handles GET /api/sales?day=YYYY-MM-DD&limit=N.
func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	day, ok := dayQuery(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, "invalid limit parameter", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		limit = n
	}
	sales, err := h.sales.GetSales(r.Context(), day, limit)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if sales == nil {
		sales = []core.Sale{}
	}
	writeJSON(w, sales)
}

// createSale handles POST /api/sales, the walk-in path: the sale settles
// immediately against the stock ledger.
func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req core.CreateSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.sales.CreateSale(r.Context(), req)
	if err != nil {
		var insErr *core.InsufficientStockError
		if errors.As(err, &insErr) {
			stockRejectionsTotal.Inc()
		}
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, sale, http.StatusCreated)
}

// getSale handles GET /api/sales/{id}.
func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	sale, err := h.sales.GetSale(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

// updateSale handles PATCH /api/sales/{id}.
func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req core.UpdateSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := h.sales.UpdateSale(r.Context(), id, req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, sale)
}
