package routes

import (
	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	guardHandler *handlers.GuardHandler,
	signalHandler *handlers.SignalHandler,
	eventsHandler *handlers.EventsHandler,
) {
	attemptLimit := middleware.DefaultAttemptRateLimit()
	signalLimit := middleware.DefaultSignalRateLimit()

	router.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(attemptLimit))
			r.Post("/login/check", guardHandler.Check)
			r.Post("/login/failure", guardHandler.Failure)
			r.Post("/login/success", guardHandler.Success)
			r.Get("/login/lockout", guardHandler.Lockout)
		})

		r.With(middleware.RateLimitByIP(signalLimit)).Post("/signals", signalHandler.Ingest)

		r.Get("/events", eventsHandler.List)
		r.Delete("/events", eventsHandler.Clear)
		r.Get("/events/export", eventsHandler.Export)
	})
}
