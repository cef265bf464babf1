package router

import (
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "lotstock/docs" // registra o documento OpenAPI servido em /swagger/doc.json

	"lotstock/internal/api/admin"
	"lotstock/internal/api/auth"
	"lotstock/internal/api/stock"
	"lotstock/internal/api/warehouse"
	"lotstock/internal/domain"
	"lotstock/internal/pkg/cache"
	"lotstock/internal/pkg/logger"
	"lotstock/internal/pkg/middleware"
)

// RateLimit configura o limitador por IP. Max <= 0 desliga o limitador.
type RateLimit struct {
	Max    int
	Period time.Duration
}

// NewRouter configura e retorna o roteador HTTP principal.
// Recebe os Handlers já inicializados por injeção de dependências.
func NewRouter(
	stockHandler *stock.Handler,
	adminHandler *admin.Handler,
	warehouseHandler *warehouse.Handler,
	authHandler *auth.Handler,
	tokenSvc middleware.TokenService,
	cacheClient cache.Client,
	limit RateLimit,
	log logger.Logger,
) http.Handler {
	mux := http.NewServeMux()

	authn := middleware.NewAuthMiddleware(tokenSvc)
	anyRole := func(h http.HandlerFunc) http.Handler {
		return authn(middleware.PermissionMiddleware(domain.RoleAdmin, domain.RoleOperator, domain.RoleService)(h))
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return authn(middleware.PermissionMiddleware(domain.RoleAdmin)(h))
	}

	// --- 1. Health check e documentação ---
	mux.HandleFunc("GET /ping", PingHandler)
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	mux.HandleFunc("POST /v1/auth/token", authHandler.TokenHandler)

	// --- 2. Consultas de estoque ---
	mux.Handle("GET /v1/variants/{id}/stock", anyRole(stockHandler.GetStockHandler))
	mux.Handle("GET /v1/variants/{id}/availability", anyRole(stockHandler.CheckAvailabilityHandler))
	mux.Handle("GET /v1/variants/{id}/history", anyRole(stockHandler.GetHistoryHandler))

	// --- 3. Reservas ---
	mux.Handle("POST /v1/reservations", anyRole(stockHandler.ReserveHandler))
	mux.Handle("POST /v1/reservations/release", anyRole(stockHandler.ReleaseHandler))
	mux.Handle("POST /v1/reservations/confirm", anyRole(stockHandler.ConfirmHandler))

	// --- 4. Administração de lotes ---
	mux.Handle("POST /v1/admin/lots", adminOnly(adminHandler.ReceiveLotHandler))
	mux.Handle("POST /v1/admin/lots/{id}/stock", adminOnly(adminHandler.AddStockHandler))
	mux.Handle("POST /v1/admin/lots/{id}/adjust", adminOnly(adminHandler.AdjustStockHandler))
	mux.Handle("POST /v1/admin/lots/{id}/status", adminOnly(adminHandler.ChangeStatusHandler))
	mux.Handle("GET /v1/admin/lots/{id}/reconcile", adminOnly(adminHandler.ReconcileLotHandler))
	mux.Handle("POST /v1/admin/expiry/sweep", adminOnly(adminHandler.SweepExpiredHandler))

	// --- 5. Armazéns ---
	mux.Handle("POST /v1/admin/warehouses", adminOnly(warehouseHandler.CreateWarehouseHandler))
	mux.Handle("GET /v1/admin/warehouses", adminOnly(warehouseHandler.ListWarehousesHandler))
	mux.Handle("GET /v1/admin/warehouses/{id}", adminOnly(warehouseHandler.GetWarehouseHandler))

	// --- 6. Clientes de API ---
	mux.Handle("POST /v1/admin/clients", adminOnly(authHandler.RegisterClientHandler))

	var handler http.Handler = mux
	if cacheClient != nil && limit.Max > 0 {
		handler = middleware.RateLimiter(cacheClient, limit.Max, limit.Period, log)(handler)
	}
	return handler
}

// PingHandler é o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
