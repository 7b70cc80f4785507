package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.rateLimitMiddleware())
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/fan", func(r chi.Router) {
			r.Get("/state", s.handleFanState)
			r.Get("/power", s.handleGetFanPower)
			r.Post("/power", s.handleSetFanPower)
			r.Get("/speed", s.handleGetFanSpeed)
			r.Post("/speed", s.handleSetFanSpeed)
			r.Get("/whoosh", s.handleGetWhoosh)
			r.Post("/whoosh", s.handleSetWhoosh)
		})

		r.Route("/light", func(r chi.Router) {
			r.Get("/power", s.handleGetLightPower)
			r.Post("/power", s.handleSetLightPower)
			r.Get("/level", s.handleGetLightLevel)
			r.Post("/level", s.handleSetLightLevel)
		})
	})

	return r
}
