package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// settingsOverview handles GET /api/settings/overview: the stock override flag
// and the two till balances in one response.
func (h *Handler) settingsOverview(w http.ResponseWriter, r *http.Request) {
	allow, err := h.settings.AllowSaleWithoutStock(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	cash, err := h.settings.CashBalance(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	bank, err := h.settings.BankBalance(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	type response struct {
		AllowSaleWithoutStock bool  `json:"allow_sale_without_stock"`
		CashBalance           int64 `json:"cash_balance"`
		BankBalance           int64 `json:"bank_balance"`
	}
	writeJSON(w, response{AllowSaleWithoutStock: allow, CashBalance: cash, BankBalance: bank})
}

// setAllowSaleWithoutStock handles PUT /api/settings/allow-sale-without-stock.
func (h *Handler) setAllowSaleWithoutStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Allow bool `json:"allow"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.settings.SetAllowSaleWithoutStock(r.Context(), req.Allow); err != nil {
		writeCoreError(w, r, err)
		return
	}
	type response struct {
		Allow bool `json:"allow"`
	}
	writeJSON(w, response{Allow: req.Allow})
}

// getSetting handles GET /api/settings/{key}.
func (h *Handler) getSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := h.settings.Get(r.Context(), key)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	type response struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	writeJSON(w, response{Key: key, Value: value})
}

// putSetting handles PUT /api/settings/{key}.
func (h *Handler) putSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Value string `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.settings.Set(r.Context(), key, req.Value); err != nil {
		writeCoreError(w, r, err)
		return
	}
	type response struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	writeJSON(w, response{Key: key, Value: req.Value})
}

type stringListResponse struct {
	Values []string `json:"values"`
}

func writeStringList(w http.ResponseWriter, values []string) {
	if values == nil {
		values = []string{}
	}
	writeJSON(w, stringListResponse{Values: values})
}

// listLabels handles GET /api/labels.
func (h *Handler) listLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := h.settings.ConfiguredLabels(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeStringList(w, labels)
}

// addLabel handles POST /api/labels.
func (h *Handler) addLabel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	labels, err := h.settings.AddLabel(r.Context(), req.Label)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeStringList(w, labels)
}

// removeLabel handles DELETE /api/labels/{label}.
func (h *Handler) removeLabel(w http.ResponseWriter, r *http.Request) {
	labels, err := h.settings.RemoveLabel(r.Context(), chi.URLParam(r, "label"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeStringList(w, labels)
}

// listCategories handles GET /api/categories.
func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.settings.ConfiguredCategories(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeStringList(w, categories)
}

// addCategory handles POST /api/categories.
func (h *Handler) addCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	categories, err := h.settings.AddCategory(r.Context(), req.Category)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeStringList(w, categories)
}

// removeCategory handles DELETE /api/categories/{category}.
func (h *Handler) removeCategory(w http.ResponseWriter, r *http.Request) {
	categories, err := h.settings.RemoveCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeStringList(w, categories)
}

// dashboard handles GET /api/dashboard.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reporting.GetDashboardStats(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, stats)
}
