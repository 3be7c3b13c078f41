package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/atelierhq/design-api/internal/api"
	apimiddleware "github.com/atelierhq/design-api/internal/api/middleware"
	"github.com/atelierhq/design-api/internal/api/shared"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	jobHandler := api.NewJobHandler(app.jobService, app.config.Storage.MaxUploadBytes, app.logger)

	r.Route("/api/designs", func(r chi.Router) {
		r.Post("/", jobHandler.SubmitJob)
		r.Get("/", jobHandler.ListJobs)
		r.Get("/{id}", jobHandler.GetJob)
		r.Get("/{id}/image", jobHandler.GetJobImage)
	})

	r.Get("/healthz", app.handleHealth)

	return r
}

// handleHealth reports readiness: the process is up and the database is
// reachable.
func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := app.db.PingContext(r.Context()); err != nil {
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
		})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
