package handler

import (
	"quizierra/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the adaptive API under /api/adaptive and the health check at /healthz.
func RegisterRoutes(app *fiber.App, adaptive *AdaptiveHandler, health *HealthHandler) {
	validate := middleware.NewValidationMiddleware()

	app.Get("/healthz", health.Health)

	api := app.Group("/api/adaptive")
	api.Post("/start_session", adaptive.StartSession)
	api.Post("/next_question", adaptive.NextQuestion)
	api.Post("/record_answer", adaptive.RecordAnswer)
	api.Post("/questions", adaptive.RegisterQuestion)
	api.Get("/questions/:id", adaptive.GetQuestion)

	api.Get("/users/:id/history", validate.ValidateUserIDParam(), validate.ValidateHistoryLimit(), adaptive.History)
	api.Get("/users/:id/stats", validate.ValidateUserIDParam(), adaptive.Stats)
}
