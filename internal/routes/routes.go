package routes

import (
	"net/http"

	"facewatch/internal/config"
	"facewatch/internal/handler"
	"facewatch/internal/logger"
	"facewatch/internal/middleware"
	"facewatch/internal/repository"
	viewer "facewatch/internal/services/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies holds everything the HTTP surface reads from.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Auth     *middleware.Auth
	Hub      *viewer.HubService
	Results  handler.ResultSource
	Frames   handler.FrameClock
	Events   repository.EventRepository
	Gatherer prometheus.Gatherer
}

// SetupRoutes registers the health, metrics, auth and viewer API routes.
// Everything under /api requires authentication.
func SetupRoutes(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handler.HealthHandler(deps.Frames, deps.Logger))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Auth endpoints
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", handler.LoginHandler(deps.Auth, deps.Logger))
		r.Post("/logout", handler.LogoutHandler)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.Auth.Middleware)

		r.Get("/view", handler.ViewWebsocketHandler(deps.Hub, deps.Logger))
		r.Get("/detections", handler.DetectionsHandler(deps.Results, deps.Logger))
		r.Get("/events", handler.EventsHandler(deps.Events, deps.Logger))
		r.Get("/events/stats", handler.EventStatsHandler(deps.Events, deps.Logger))
		r.Get("/logs", handler.ShowLogsHandler(deps.Config))
	})

	return r
}
