package router

import (
	"net/http"

	"github.com/caixa-pos/api/internal/config"
	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/handler"
	mw "github.com/caixa-pos/api/internal/middleware"
	"github.com/caixa-pos/api/internal/service"
	"github.com/caixa-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Deps are the long-lived objects the router wires handlers to.
type Deps struct {
	Config   *config.Config
	Pool     service.DB
	Queries  *database.Queries
	Hub      *ws.Hub
	Notifier service.Notifier
}

// New creates a Chi router with all application routes wired up.
// Order and caixa routes require a terminal JWT; privileged caixa actions
// additionally check an operator PIN inside the handler.
func New(d Deps) chi.Router {
	cfg := d.Config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(mw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	retry := service.DefaultRetryPolicy
	retry.MaxAttempts = cfg.StorageRetryAttempts

	sessionService := service.NewSessionService(d.Pool, func(db database.DBTX) service.SessionStore {
		return database.New(db)
	}, d.Notifier)
	ledger := service.NewLedger(d.Pool, func(db database.DBTX) service.LedgerStore {
		return database.New(db)
	}, d.Notifier, retry)
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(d.Pool, newOrderStore, d.Notifier)
	reconciler := service.NewReconciler(d.Pool, newOrderStore, d.Notifier, retry)
	pins := service.NewPinGate(d.Queries)

	// Public routes
	handler.NewAuthHandler(d.Queries, cfg.JWTSecret).RegisterRoutes(r)

	orderHandler := handler.NewOrderHandler(orderService)
	orderHandler.RegisterPublicRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{topic}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require a terminal token)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		orderHandler.RegisterRoutes(r)
		handler.NewPaymentHandler(reconciler, pins).RegisterRoutes(r)
		handler.NewCaixaHandler(sessionService, ledger, pins, cfg.Timezone).RegisterRoutes(r)

		// Operator management (ADMIN and GERENTE only)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleAdmin, enum.RoleGerente))
			handler.NewOperatorHandler(d.Queries, pins).RegisterRoutes(r)
		})
	})

	log.Info().Msg("router initialized")
	return r
}
