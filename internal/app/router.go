package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/retiro-core/retiro-core/internal/benefits"
	"github.com/retiro-core/retiro-core/internal/incidents"
	"github.com/retiro-core/retiro-core/internal/observability"
	"github.com/retiro-core/retiro-core/internal/schedule"
	"github.com/retiro-core/retiro-core/internal/tickets"
	"github.com/retiro-core/retiro-core/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	BenefitsHandler  *benefits.Handler
	TicketsHandler   *tickets.Handler
	ScheduleHandler  *schedule.Handler
	IncidentsHandler *incidents.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router serving the ticket workflow API.
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

	r.Route("/beneficios", params.BenefitsHandler.MountRoutes)
	r.Route("/tickets", params.TicketsHandler.MountRoutes)
	r.Route("/agendamientos", params.ScheduleHandler.MountRoutes)
	r.Route("/incidencias", params.IncidentsHandler.MountRoutes)

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
