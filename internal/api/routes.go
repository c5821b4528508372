package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/fcs-vault/internal/api/middleware"
)

// RegisterRoutes mounts the /api endpoints on r.
func RegisterRoutes(r chi.Router, auth *middleware.AuthMiddleware, files *FileHandler, stats *StatsHandler) {
	r.Route("/api", func(r chi.Router) {
		// Anonymous callers are allowed; a valid token identifies the owner.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth)

			r.Post("/files/upload", files.Upload)
			r.Get("/files", files.List)
			r.Get("/files/{slug}", files.Get)
			r.Get("/files/{slug}/download", files.Download)
		})

		// Task ids are unguessable; polling needs no credential.
		r.Get("/stats/tasks/{task_id}", stats.GetTask)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Put("/files/{slug}/visibility", files.SetVisibility)
			r.Post("/stats/tasks", stats.SubmitTask)
			r.Get("/stats/user/files", stats.UserFiles)
			r.Get("/stats/user/summary", stats.UserSummary)
			r.Get("/stats/user/activities", stats.UserActivities)
		})
	})
}
