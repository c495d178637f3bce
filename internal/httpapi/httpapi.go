package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"aracitakip/backend/internal/domain"
	"aracitakip/backend/internal/ledger"
)

type actorContextKey struct{}

func withActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type API struct {
	engine        *ledger.Engine
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	log           *zap.Logger
}

func New(engine *ledger.Engine, auth *AuthManager, allowedOrigin string, loginPerMinute int, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		engine:        engine,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(loginPerMinute),
		log:           log,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	read := []string{RoleAdmin, RoleViewer}

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("GET /api/v1/categories", a.requireAuth(a.handleListCategories, read...))
	mux.HandleFunc("POST /api/v1/categories", a.requireAuth(a.handleCreateCategory, RoleAdmin))
	mux.HandleFunc("PATCH /api/v1/categories/{id}", a.requireAuth(a.handleUpdateCategory, RoleAdmin))
	mux.HandleFunc("DELETE /api/v1/categories/{id}", a.requireAuth(a.handleDeleteCategory, RoleAdmin))
	mux.HandleFunc("GET /api/v1/categories/{id}/products", a.requireAuth(a.handleCategoryProducts, read...))

	mux.HandleFunc("GET /api/v1/products", a.requireAuth(a.handleListProducts, read...))
	mux.HandleFunc("POST /api/v1/products", a.requireAuth(a.handleCreateProduct, RoleAdmin))
	mux.HandleFunc("PATCH /api/v1/products/{id}", a.requireAuth(a.handleUpdateProduct, RoleAdmin))
	mux.HandleFunc("DELETE /api/v1/products/{id}", a.requireAuth(a.handleDeleteProduct, RoleAdmin))
	mux.HandleFunc("PUT /api/v1/products/{id}/stock", a.requireAuth(a.handleUpdateStock, RoleAdmin))

	mux.HandleFunc("GET /api/v1/stock/critical", a.requireAuth(a.handleCriticalProducts, read...))
	mux.HandleFunc("GET /api/v1/stock/out-of-stock", a.requireAuth(a.handleOutOfStockProducts, read...))
	mux.HandleFunc("GET /api/v1/stock/movements", a.requireAuth(a.handleStockMovements, read...))
	mux.HandleFunc("GET /api/v1/stock/reorder-suggestions", a.requireAuth(a.handleReorderSuggestions, read...))

	mux.HandleFunc("GET /api/v1/brokers", a.requireAuth(a.handleListBrokers, read...))
	mux.HandleFunc("POST /api/v1/brokers", a.requireAuth(a.handleCreateBroker, RoleAdmin))
	mux.HandleFunc("GET /api/v1/brokers/{id}", a.requireAuth(a.handleGetBroker, read...))
	mux.HandleFunc("PATCH /api/v1/brokers/{id}", a.requireAuth(a.handleUpdateBroker, RoleAdmin))
	mux.HandleFunc("DELETE /api/v1/brokers/{id}", a.requireAuth(a.handleDeleteBroker, RoleAdmin))
	mux.HandleFunc("POST /api/v1/brokers/{id}/receipt/toggle", a.requireAuth(a.handleToggleReceipt, RoleAdmin))
	mux.HandleFunc("PUT /api/v1/brokers/{id}/discount", a.requireAuth(a.handleUpdateDiscount, RoleAdmin))
	mux.HandleFunc("POST /api/v1/brokers/{id}/give", a.requireAuth(a.handleGiveProduct, RoleAdmin))
	mux.HandleFunc("POST /api/v1/brokers/{id}/collect", a.requireAuth(a.handleCollect, RoleAdmin))
	mux.HandleFunc("GET /api/v1/brokers/{id}/transactions", a.requireAuth(a.handleBrokerTransactions, read...))

	mux.HandleFunc("GET /api/v1/dashboard", a.requireAuth(a.handleDashboard, read...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(withActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories := a.engine.Categories()
	if activeOnly(r) {
		categories = a.engine.ActiveCategories()
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.engine.AddCategory(r.Context(), req)
	a.writeResult(w, r, http.StatusCreated, res, err)
}

func (a *API) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryPatch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.engine.UpdateCategory(r.Context(), r.PathValue("id"), req)
	a.writeResult(w, r, http.StatusOK, res, err)
}

func (a *API) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.DeleteCategory(r.Context(), r.PathValue("id"))
	a.writeResult(w, r, http.StatusOK, res, err)
}

func (a *API) handleCategoryProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"products": a.engine.ProductsByCategory(r.PathValue("id"))})
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products := a.engine.Products()
	if activeOnly(r) {
		products = a.engine.ActiveProducts()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products":                products,
		"total_stock_value_cents": a.engine.TotalStockValue(),
	})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.engine.AddProduct(r.Context(), req)
	a.writeResult(w, r, http.StatusCreated, res, err)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductPatch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.engine.UpdateProduct(r.Context(), r.PathValue("id"), req)
	a.writeResult(w, r, http.StatusOK, res, err)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.DeleteProduct(r.Context(), r.PathValue("id"))
	a.writeResult(w, r, http.StatusOK, res, err)
}

func (a *API) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.engine.UpdateProductStock(r.Context(), r.PathValue("id"), req.Stock, req.Reason)
	a.writeResult(w, r, http.StatusOK, res, err)
}

func (a *API) handleCriticalProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"critical_level": domain.CriticalStockLevel,
		"products":       a.engine.CriticalProducts(),
	})
}

func (a *API) handleOutOfStockProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"products": a.engine.OutOfStockProducts()})
}

func (a *API) handleStockMovements(w http.ResponseWriter, r *http.Request) {
	movements := a.engine.StockMovements(strings.TrimSpace(r.URL.Query().Get("product_id")))
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 1000)
	if len(movements) > limit {
		movements = movements[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (a *API) handleReorderSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"suggestions":  a.engine.ReorderSuggestions(),
	})
}

func (a *API) handleListBrokers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"brokers": a.engine.BrokerSummaries()})
}

func (a *API) handleCreateBroker(w http.ResponseWriter, r *http.Request) {
	var req domain.BrokerInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.engine.AddBroker(r.Context(), req)
	a.writeResult(w, r, http.StatusCreated, res, err)
}

func (a *API) handleGetBroker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	broker, ok := a.engine.Broker(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ledger.BrokerNotFound())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"broker":     broker,
		"debt_cents": a.engine.BrokerTotalDebt(id),
	})
}

func (a *API) handleUpdateBroker(w http.ResponseWriter, r *http.Request) {
	var req domain.BrokerPatch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.engine.UpdateBroker(r.Context(), r.PathValue("id"), req)
	a.writeResult(w, r, http.StatusOK, res, err)
}

func (a *API) handleDeleteBroker(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.DeleteBroker(r.Context(), r.PathValue("id"))
	a.writeResult(w, r, http.StatusOK, res, err)
}

func (a *API) handleToggleReceipt(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.ToggleBrokerReceipt(r.Context(), r.PathValue("id"))
	a.writeResult(w, r, http.StatusOK, res, err)
}

func (a *API) handleUpdateDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.DiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.engine.UpdateBrokerDiscount(r.Context(), r.PathValue("id"), req.DiscountRate)
	a.writeResult(w, r, http.StatusOK, res, err)
}

func (a *API) handleGiveProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.GiveProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.engine.GiveProductToBroker(r.Context(), r.PathValue("id"), req.ProductID, req.Quantity)
	a.writeResult(w, r, http.StatusCreated, res, err)
}

func (a *API) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req domain.CollectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.engine.CollectFromBroker(r.Context(), r.PathValue("id"), req.AmountCents, req.PaymentType)
	a.writeResult(w, r, http.StatusCreated, res, err)
}

func (a *API) handleBrokerTransactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := a.engine.Broker(id); !ok {
		writeJSON(w, http.StatusNotFound, ledger.BrokerNotFound())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": a.engine.BrokerTransactions(id),
		"debt_cents":   a.engine.BrokerTotalDebt(id),
	})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Dashboard())
}

// writeResult answers a ledger mutation. Rejections keep the Result body so
// the client can show its message.
func (a *API) writeResult(w http.ResponseWriter, r *http.Request, okStatus int, res domain.Result, err error) {
	if err != nil {
		a.log.Error("ledger mutation failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, okStatus, res)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(startedAt)),
		)
	})
}

func activeOnly(r *http.Request) bool {
	active, err := strconv.ParseBool(r.URL.Query().Get("active"))
	return err == nil && active
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; 4xx messages are meant for the user.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
