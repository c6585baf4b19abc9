package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pohlai88/ledgercore/internal/accounts"
	"github.com/pohlai88/ledgercore/internal/bills"
	"github.com/pohlai88/ledgercore/internal/idempotency"
	"github.com/pohlai88/ledgercore/internal/invoices"
	"github.com/pohlai88/ledgercore/internal/journals"
	"github.com/pohlai88/ledgercore/internal/payments"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Pool            *pgxpool.Pool
	AccountsHandler *accounts.Handler
	JournalsHandler *journals.Handler
	InvoicesHandler *invoices.Handler
	BillsHandler    *bills.Handler
	PaymentsHandler *payments.Handler
	RequestsHandler *idempotency.Handler
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/accounts", params.AccountsHandler.MountRoutes)
		api.Route("/journals", params.JournalsHandler.MountRoutes)
		api.Route("/invoices", params.InvoicesHandler.MountRoutes)
		api.Route("/bills", params.BillsHandler.MountRoutes)
		api.Route("/payments", params.PaymentsHandler.MountRoutes)
		api.Route("/requests", params.RequestsHandler.MountRoutes)
	})

	return r
}
