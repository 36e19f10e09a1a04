package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opencarbon/soilstock/internal/api"
	apimiddleware "github.com/opencarbon/soilstock/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	sampleHandler := api.NewSampleHandler(app.sampleService)
	runHandler := api.NewRunHandler(app.runService)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/samples", sampleHandler.ImportSamples)

		r.Post("/runs", runHandler.TriggerRun)
		r.Get("/runs", runHandler.ListRuns)
		r.Get("/runs/{id}", runHandler.GetRun)
		r.Get("/runs/{id}/depths/{depth}", runHandler.GetDepthResult)
	})

	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
