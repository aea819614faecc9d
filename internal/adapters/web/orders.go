package web

import (
	"errors"
	"net/http"

	"cafe-ledger/internal/core"
)

// listTables handles GET /api/tables.
func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.orders.GetTables(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if tables == nil {
		tables = []core.Table{}
	}
	writeJSON(w, tables)
}

// createTable handles POST /api/tables.
func (h *Handler) createTable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number   int `json:"number"`
		Capacity int `json:"capacity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	table, err := h.orders.CreateTable(r.Context(), req.Number, req.Capacity)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, table, http.StatusCreated)
}

// listCustomers handles GET /api/customers.
func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.orders.GetCustomers(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if customers == nil {
		customers = []core.Customer{}
	}
	writeJSON(w, customers)
}

// createCustomer handles POST /api/customers.
func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	customer, err := h.orders.CreateCustomer(r.Context(), req.Name, req.Phone)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, customer, http.StatusCreated)
}

// listOrders handles GET /api/orders?status=OPEN|CLOSED|CANCELLED.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var status *core.OrderStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := core.OrderStatus(v)
		if s != core.OrderOpen && s != core.OrderClosed && s != core.OrderCancelled {
			writeError(w, r, "invalid status filter", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		status = &s
	}
	orders, err := h.orders.GetOrders(r.Context(), status)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if orders == nil {
		orders = []core.Order{}
	}
	writeJSON(w, orders)
}

// createOrder handles POST /api/orders.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TableID int `json:"table_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.orders.CreateOrder(r.Context(), req.TableID)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, order, http.StatusCreated)
}

// getOrder handles GET /api/orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, order)
}

// addOrderLine handles POST /api/orders/{id}/lines.
func (h *Handler) addOrderLine(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req core.AddOrderLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	line, err := h.orders.AddItemToOrder(r.Context(), id, req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, line, http.StatusCreated)
}

// removeOrderLine handles DELETE /api/order-lines/{saleID}.
func (h *Handler) removeOrderLine(w http.ResponseWriter, r *http.Request) {
	saleID, ok := idParam(w, r, "saleID")
	if !ok {
		return
	}
	if err := h.orders.RemoveItemFromOrder(r.Context(), saleID); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// closeOrder handles POST /api/orders/{id}/close. Settlement is all-or-nothing:
// a single short ingredient leaves the order open and the ledger untouched.
func (h *Handler) closeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		PaymentType core.PaymentType `json:"payment_type"`
		CustomerID  *int             `json:"customer_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	order, err := h.orders.CloseOrder(r.Context(), id, req.PaymentType, req.CustomerID, h.sales)
	if err != nil {
		var insErr *core.InsufficientStockError
		if errors.As(err, &insErr) {
			stockRejectionsTotal.Inc()
		}
		writeCoreError(w, r, err)
		return
	}
	ordersClosedTotal.WithLabelValues(string(req.PaymentType)).Inc()
	writeJSON(w, order)
}

// cancelOrder handles POST /api/orders/{id}/cancel.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, order)
}
