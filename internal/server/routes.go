package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the Job API. HTTP here is a thin shell; all semantics live in
// the store, dispatcher, and persister.
func (s *JobsService) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/", s.handleList)
			r.Route("/{jobID}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Post("/cancel", s.handleCancel)
				r.Delete("/", s.handleDelete)
			})
		})
	})

	return r
}
