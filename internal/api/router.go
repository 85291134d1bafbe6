// Package api exposes the synthesis, cloning, and voice-listing
// operations over HTTP. Handlers validate input, forward to the engines,
// translate the error taxonomy into status codes, and clean up the
// artifacts they serve.
package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	// Empty allows all origins (development mode).
	CORSAllowedOrigins string
}

// NewRouter wires the voice-agent routes with the standard middleware
// stack.
func NewRouter(handler *Handler, cfg RouterConfig) *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	allowedOrigins := []string{"*"}

	if cfg.CORSAllowedOrigins != "" {
		origins := strings.Split(cfg.CORSAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))

		for _, origin := range origins {
			if cleaned := strings.TrimSpace(origin); cleaned != "" {
				trimmed = append(trimmed, cleaned)
			}
		}

		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", handler.Health)

	router.Route("/v1", func(r chi.Router) {
		r.Get("/voices", handler.ListVoices)
		r.Post("/synthesize", handler.Synthesize)
		r.Post("/clone", handler.Clone)
		r.Post("/synthesize-with-clone", handler.SynthesizeWithClone)
	})

	return router
}
