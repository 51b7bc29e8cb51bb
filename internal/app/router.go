package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ruko-pos/ruko-pos/internal/auth"
	"github.com/ruko-pos/ruko-pos/internal/cart"
	"github.com/ruko-pos/ruko-pos/internal/catalog"
	"github.com/ruko-pos/ruko-pos/internal/checkout"
	"github.com/ruko-pos/ruko-pos/internal/expense"
	"github.com/ruko-pos/ruko-pos/internal/ledger"
	"github.com/ruko-pos/ruko-pos/internal/observability"
	"github.com/ruko-pos/ruko-pos/internal/reporting"
	"github.com/ruko-pos/ruko-pos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	CatalogHandler   *catalog.Handler
	CartHandler      *cart.Handler
	CheckoutHandler  *checkout.Handler
	LedgerHandler    *ledger.Handler
	ExpenseHandler   *expense.Handler
	ReportingHandler *reporting.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with store defaults.
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

	r.Route("/api", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		params.CatalogHandler.MountRoutes(r)
		params.CartHandler.MountRoutes(r)
		params.CheckoutHandler.MountRoutes(r)
		params.LedgerHandler.MountRoutes(r)
		params.ExpenseHandler.MountRoutes(r)
		params.ReportingHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
