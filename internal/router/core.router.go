package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httphandler "relay-service/internal/handler/http"
	wshandler "relay-service/internal/handler/ws"
	"relay-service/internal/metrics"
	"relay-service/internal/middleware"
)

// SetupRoutes configures the HTTP routes for the relay service
func SetupRoutes(
	r chi.Router,
	publish *httphandler.PublishHandler,
	wsHandler *wshandler.WSHandler,
	auth *middleware.AuthMiddleware,
	publishToken string,
) chi.Router {
	// ---- Global Middleware ----
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		MaxAge: 300,
	}))
	r.Use(metrics.Middleware)

	r.Get("/healthz", publish.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/relay", func(r chi.Router) {
		// Browser sessions attach here; one connection per tab.
		r.With(auth.Middleware).Get("/ws", wsHandler.HandleEvents)

		// Trusted publishers only (backend process, bot integration).
		r.With(middleware.RequirePublisher(publishToken)).
			Post("/publish", publish.HandlePublish)
	})
	return r
}
