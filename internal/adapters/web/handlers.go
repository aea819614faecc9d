package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cafe-ledger/internal/core"

	"github.com/go-chi/chi/v5"
)

// Handler holds the core services and the chi router.
type Handler struct {
	catalog     core.CatalogService
	recipes     core.RecipeService
	stock       core.StockService
	sales       core.SalesService
	orders      core.OrderService
	receivables core.ReceivableService
	expenses    core.ExpenseService
	settings    core.SettingsService
	reporting   core.ReportingService
}

// Services groups the core services the web adapter exposes.
type Services struct {
	Catalog     core.CatalogService
	Recipes     core.RecipeService
	Stock       core.StockService
	Sales       core.SalesService
	Orders      core.OrderService
	Receivables core.ReceivableService
	Expenses    core.ExpenseService
	Settings    core.SettingsService
	Reporting   core.ReportingService
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc Services, allowedOrigins string) http.Handler {
	h := &Handler{
		catalog:     svc.Catalog,
		recipes:     svc.Recipes,
		stock:       svc.Stock,
		sales:       svc.Sales,
		orders:      svc.Orders,
		receivables: svc.Receivables,
		expenses:    svc.Expenses,
		settings:    svc.Settings,
		reporting:   svc.Reporting,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Metrics)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// ── Catalog ───────────────────────────────────────────────────────────
		r.Get("/api/items", h.listItems)
		r.Post("/api/items", h.createItem)
		r.Get("/api/items/{id}", h.getItem)
		r.Patch("/api/items/{id}", h.updateItem)
		r.Delete("/api/items/{id}", h.deleteItem)

		// ── Recipes ───────────────────────────────────────────────────────────
		r.Get("/api/items/{id}/recipe", h.getRecipe)
		r.Put("/api/items/{id}/recipe", h.upsertRecipe)
		r.Delete("/api/items/{id}/recipe", h.deleteRecipe)
		r.Post("/api/items/{id}/recipe/recompute-cost", h.recomputeCost)

		// ── Stock ledger ──────────────────────────────────────────────────────
		r.Get("/api/stock", h.listStock)
		r.Get("/api/stock/low", h.lowStock)
		r.Get("/api/stock/{itemID}", h.getItemStock)
		r.Post("/api/stock/{itemID}/transactions", h.applyStockTransaction)
		r.Post("/api/stock/{itemID}/reconcile", h.reconcileStock)

		// ── Sales ─────────────────────────────────────────────────────────────
		r.Get("/api/sales", h.listSales)
		r.Post("/api/sales", h.createSale)
		r.Get("/api/sales/{id}", h.getSale)
		r.Patch("/api/sales/{id}", h.updateSale)

		// ── Tables, customers, orders ─────────────────────────────────────────
		r.Get("/api/tables", h.listTables)
		r.Post("/api/tables", h.createTable)
		r.Get("/api/customers", h.listCustomers)
		r.Post("/api/customers", h.createCustomer)
		r.Get("/api/orders", h.listOrders)
		r.Post("/api/orders", h.createOrder)
		r.Get("/api/orders/{id}", h.getOrder)
		r.Post("/api/orders/{id}/lines", h.addOrderLine)
		r.Delete("/api/order-lines/{saleID}", h.removeOrderLine)
		r.Post("/api/orders/{id}/close", h.closeOrder)
		r.Post("/api/orders/{id}/cancel", h.cancelOrder)

		// ── Receivables ───────────────────────────────────────────────────────
		r.Get("/api/receivables", h.listReceivables)
		r.Get("/api/receivables/{id}", h.getReceivable)
		r.Get("/api/receivables/{id}/payments", h.listPayments)
		r.Post("/api/receivables/{id}/payments", h.recordPayment)

		// ── Expenses ──────────────────────────────────────────────────────────
		r.Get("/api/expenses", h.listExpenses)
		r.Post("/api/expenses", h.createExpense)
		r.Patch("/api/expenses/{id}", h.updateExpense)
		r.Delete("/api/expenses/{id}", h.deleteExpense)
		r.Get("/api/expense-categories", h.listExpenseCategories)
		r.Post("/api/expense-categories", h.addExpenseCategory)
		r.Delete("/api/expense-categories/{category}", h.removeExpenseCategory)

		// ── Settings ──────────────────────────────────────────────────────────
		r.Get("/api/settings/overview", h.settingsOverview)
		r.Put("/api/settings/allow-sale-without-stock", h.setAllowSaleWithoutStock)
		r.Get("/api/settings/{key}", h.getSetting)
		r.Put("/api/settings/{key}", h.putSetting)
		r.Get("/api/labels", h.listLabels)
		r.Post("/api/labels", h.addLabel)
		r.Delete("/api/labels/{label}", h.removeLabel)
		r.Get("/api/categories", h.listCategories)
		r.Post("/api/categories", h.addCategory)
		r.Delete("/api/categories/{category}", h.removeCategory)

		// ── Reports ───────────────────────────────────────────────────────────
		r.Get("/api/dashboard", h.dashboard)
	})

	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// idParam extracts an integer URL parameter, writing a 400 on failure.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name+" parameter", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
