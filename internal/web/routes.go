package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-id/internal/web/handlers"
	"github.com/kozaktomas/face-id/internal/web/middleware"
)

func (s *Server) setupRoutes() error {
	// Create handlers
	facesHandler, err := handlers.NewFacesHandler(s.faces, s.config.Web.MaxUploadSize, s.logger)
	if err != nil {
		return err
	}
	identitiesHandler := handlers.NewIdentitiesHandler(s.store, s.metrics, s.logger)
	limit := middleware.RateLimit(s.config.Web.RateLimitRPS, s.config.Web.RateLimitBurst, s.metrics)

	// Upload form and the enroll/recognize endpoints it posts to
	s.router.Get("/", facesHandler.EnrollPage)
	s.router.Get("/recognize", facesHandler.RecognizePage)
	s.router.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/", facesHandler.Enroll)
		r.Post("/recognize", facesHandler.Recognize)
	})

	// Prometheus metrics
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck(s.extractor))
		r.Get("/identities", identitiesHandler.List)
		r.With(limit).Delete("/identities/{id}", identitiesHandler.Delete)
	})

	return nil
}
