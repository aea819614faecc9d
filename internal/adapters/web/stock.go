package web

import (
	"net/http"
	"time"

	"cafe-ledger/internal/core"
)

// dayQuery reads the ?day= parameter, defaulting to today. Writes a 400 and
// returns false on a malformed value.
func dayQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	day := r.URL.Query().Get("day")
	if day == "" {
		return core.DayOf(time.Now()), true
	}
	day, err := core.ParseDay(day)
	if err != nil {
		writeCoreError(w, r, err)
		return "", false
	}
	return day, true
}

// listStock handles GET /api/stock?day=YYYY-MM-DD.
func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	day, ok := dayQuery(w, r)
	if !ok {
		return
	}
	entries, err := h.stock.GetStock(r.Context(), day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.StockEntry{}
	}
	writeJSON(w, entries)
}

// getItemStock handles GET /api/stock/{itemID}?day=YYYY-MM-DD. Accessing a day
// materializes and heals its ledger record.
func (h *Handler) getItemStock(w http.ResponseWriter, r *http.Request) {
	itemID, ok := idParam(w, r, "itemID")
	if !ok {
		return
	}
	day, ok := dayQuery(w, r)
	if !ok {
		return
	}
	rec, err := h.stock.GetOrInit(r.Context(), itemID, day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, rec)
}

// applyStockTransaction handles POST /api/stock/{itemID}/transactions.
func (h *Handler) applyStockTransaction(w http.ResponseWriter, r *http.Request) {
	itemID, ok := idParam(w, r, "itemID")
	if !ok {
		return
	}
	var req struct {
		Type     core.StockTransactionType `json:"type"`
		Quantity int                       `json:"quantity"`
		Day      string                    `json:"day"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	day := req.Day
	if day == "" {
		day = core.DayOf(time.Now())
	} else {
		var err error
		if day, err = core.ParseDay(day); err != nil {
			writeCoreError(w, r, err)
			return
		}
	}
	rec, err := h.stock.ApplyTransaction(r.Context(), itemID, req.Type, req.Quantity, day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, rec)
}

// reconcileStock handles POST /api/stock/{itemID}/reconcile, the standalone
// continuity repair job.
func (h *Handler) reconcileStock(w http.ResponseWriter, r *http.Request) {
	itemID, ok := idParam(w, r, "itemID")
	if !ok {
		return
	}
	fixed, err := h.stock.Reconcile(r.Context(), itemID)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	type response struct {
		ItemID       int `json:"item_id"`
		RowsRepaired int `json:"rows_repaired"`
	}
	writeJSON(w, response{ItemID: itemID, RowsRepaired: fixed})
}

// lowStock handles GET /api/stock/low?day=YYYY-MM-DD.
func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	day, ok := dayQuery(w, r)
	if !ok {
		return
	}
	entries, err := h.reporting.GetLowStock(r.Context(), day)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.LowStockEntry{}
	}
	writeJSON(w, entries)
}
