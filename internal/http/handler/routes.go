package handler

import (
	"github.com/gofiber/fiber/v2"

	"deptportal/internal/http/middleware"
	"deptportal/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin; pipeline rules live in the service.
func RegisterRoutes(app *fiber.App, db Pinger, svc service.UploadService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")
	api.Get("/categories", ListCategories())
	api.Get("/uploads", ListUploads(svc))
	api.Get("/uploads/:id", GetUpload(svc))
	api.Delete("/uploads/:id", middleware.RequireSession(), DeleteUpload(svc))
	api.Post("/uploads/:category/:ownerId?", UploadFile(svc))
}
