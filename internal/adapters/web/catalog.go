package web

import (
	"net/http"

	"cafe-ledger/internal/core"
)

// listItems handles GET /api/items?is_ingredient=true&active=true.
func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.GetItems(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}

	filtered := make([]core.Item, 0, len(items))
	ingredientFilter, hasIngredientFilter := boolQuery(r, "is_ingredient")
	activeFilter, hasActiveFilter := boolQuery(r, "active")
	for _, it := range items {
		if hasIngredientFilter && it.IsIngredient != ingredientFilter {
			continue
		}
		if hasActiveFilter && it.IsActive != activeFilter {
			continue
		}
		filtered = append(filtered, it)
	}
	writeJSON(w, filtered)
}

// boolQuery reads an optional boolean query parameter.
func boolQuery(r *http.Request, name string) (value, present bool) {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

// createItem handles POST /api/items.
func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req core.CreateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.catalog.CreateItem(r.Context(), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, item, http.StatusCreated)
}

// getItem handles GET /api/items/{id}.
func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	item, err := h.catalog.GetItem(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, item)
}

// updateItem handles PATCH /api/items/{id}.
func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req core.UpdateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.catalog.UpdateItem(r.Context(), id, req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, item)
}

// deleteItem handles DELETE /api/items/{id}.
func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteItem(r.Context(), id); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getRecipe handles GET /api/items/{id}/recipe.
func (h *Handler) getRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	recipe, err := h.recipes.GetByMenuItem(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if recipe == nil {
		writeError(w, r, "item has no recipe", "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, recipe)
}

// upsertRecipe handles PUT /api/items/{id}/recipe.
func (h *Handler) upsertRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Components []core.RecipeComponentInput `json:"components"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	recipe, err := h.recipes.Upsert(r.Context(), id, req.Components)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, recipe)
}

// deleteRecipe handles DELETE /api/items/{id}/recipe.
func (h *Handler) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.recipes.Delete(r.Context(), id); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recomputeCost handles POST /api/items/{id}/recipe/recompute-cost.
func (h *Handler) recomputeCost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	cost, err := h.recipes.RecomputeCostFromRecipe(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	type response struct {
		ItemID    int   `json:"item_id"`
		CostPrice int64 `json:"cost_price"`
	}
	writeJSON(w, response{ItemID: id, CostPrice: cost})
}
