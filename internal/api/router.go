package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/safety-dispatch/internal/api/handler"
	apimw "github.com/notifyhub/safety-dispatch/internal/api/middleware"
	"github.com/notifyhub/safety-dispatch/internal/emailaddr"
	"github.com/notifyhub/safety-dispatch/internal/maplink"
	"github.com/notifyhub/safety-dispatch/internal/repository"
	"github.com/notifyhub/safety-dispatch/internal/safety"
	"github.com/notifyhub/safety-dispatch/internal/service"
	"github.com/notifyhub/safety-dispatch/internal/tracking"
)

// Deps collects everything the HTTP layer talks to.
type Deps struct {
	Orchestrator    *service.Orchestrator
	Contacts        repository.ContactRepository
	Tracking        *tracking.Manager
	Corrector       *emailaddr.Corrector
	Maps            *maplink.Builder
	Scorer          safety.RouteSafetyScorer
	Weather         safety.WeatherProvider
	HelpCenters     safety.HelpCenterFinder
	RelayConfigured bool
	HealthChecks    map[string]handler.HealthCheck
	Gatherer        prometheus.Gatherer
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	dh := handler.NewDispatchHandler(d.Orchestrator, logger)
	ch := handler.NewContactHandler(d.Contacts)
	th := handler.NewTrackingHandler(d.Tracking)
	tools := handler.NewToolsHandler(d.Corrector, d.Maps)
	sh := handler.NewSafetyHandler(d.Scorer, d.Weather, d.HelpCenters)
	st := handler.NewStatusHandler(d.Tracking, d.RelayConfigured)
	hh := handler.NewHealthHandler(d.HealthChecks)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/location/share", dh.ShareLocation)
		r.Post("/alerts", dh.SendAlert)
		r.Get("/dispatches/{id}", dh.GetDispatch)
		r.Post("/dispatches/{id}/retry", dh.Retry)

		r.Route("/users/{owner}", func(r chi.Router) {
			r.Post("/alerts", dh.AlertOwnerContacts)
			r.Get("/contacts", ch.List)
			r.Post("/contacts", ch.Create)
			r.Delete("/contacts/{id}", ch.Delete)
		})

		r.Post("/tracking", th.Start)
		r.Get("/tracking/{id}", th.Get)
		r.Put("/tracking/{id}/position", th.UpdatePosition)
		r.Delete("/tracking/{id}", th.Stop)

		r.Post("/emails/analyze", tools.AnalyzeEmail)
		r.Get("/maps/static", tools.StaticMap)

		r.Post("/routes/score", sh.ScoreRoute)
		r.Get("/weather", sh.Weather)
		r.Get("/help-centers", sh.HelpCenters)

		r.Get("/status", st.GetStatus)
	})

	return r
}
