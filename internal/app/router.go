package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockpile-erp/stockpile-erp/internal/catalog"
	"github.com/stockpile-erp/stockpile-erp/internal/notifications"
	"github.com/stockpile-erp/stockpile-erp/internal/observability"
	"github.com/stockpile-erp/stockpile-erp/internal/stock"
	"github.com/stockpile-erp/stockpile-erp/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	CatalogHandler       *catalog.Handler
	StockHandler         *stock.Handler
	NotificationsHandler *notifications.Handler
	UsersHandler         *users.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with Stockpile defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if params.CatalogHandler != nil {
			api.Route("/items", params.CatalogHandler.MountItemRoutes)
			api.Route("/categories", params.CatalogHandler.MountCategoryRoutes)
		}
		if params.StockHandler != nil {
			api.Route("/stock", params.StockHandler.MountRoutes)
		}
		if params.NotificationsHandler != nil {
			api.Route("/notifications", params.NotificationsHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			api.Route("/users", params.UsersHandler.MountRoutes)
		}
	})

	return r
}
