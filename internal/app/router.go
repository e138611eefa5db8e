package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/expensa-app/expensa/internal/areas"
	"github.com/expensa-app/expensa/internal/audit"
	"github.com/expensa-app/expensa/internal/auth"
	"github.com/expensa-app/expensa/internal/companies"
	"github.com/expensa-app/expensa/internal/expenses"
	"github.com/expensa-app/expensa/internal/observability"
	"github.com/expensa-app/expensa/internal/platform/httpx"
	"github.com/expensa-app/expensa/internal/reports"
	"github.com/expensa-app/expensa/internal/shared"
	"github.com/expensa-app/expensa/internal/users"
	"github.com/expensa-app/expensa/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	CompaniesHandler *companies.Handler
	AreasHandler     *areas.Handler
	ExpensesHandler  *expenses.Handler
	ReportsHandler   *reports.Handler
	AuditHandler     *audit.Handler
	JobHandler       *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Expensa defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
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
		r.Route("/auth", params.AuthHandler.MountRoutes)
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.CompaniesHandler != nil {
			r.Route("/companies", params.CompaniesHandler.MountRoutes)
		}
		if params.AreasHandler != nil {
			r.Route("/areas", params.AreasHandler.MountRoutes)
		}
		r.Route("/expenses", func(r chi.Router) {
			params.ExpensesHandler.MountRoutes(r)
			// The router owns expense status changes; the endpoint lives
			// under /expenses but is served by the reports handler.
			params.ReportsHandler.MountExpenseRoutes(r)
		})
		r.Route("/reports", params.ReportsHandler.MountRoutes)
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no such route")
	})

	return r
}
