package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/fcs-vault/internal/api"
	apiMiddleware "github.com/phrazzld/fcs-vault/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))
	r.Use(apiMiddleware.MetricsMiddleware())

	fileHandler := api.NewFileHandler(app.ingest, app.config.Upload.MaxBytes, app.logger)
	statsHandler := api.NewStatsHandler(app.engine, app.ingest, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.identity)

	api.RegisterRoutes(r, authMiddleware, fileHandler, statsHandler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
