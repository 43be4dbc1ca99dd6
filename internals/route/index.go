// file: internals/route/index.go
package routes

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	syncRoute "sekolahsync_backend/internals/features/sync/route"
	"sekolahsync_backend/internals/features/sync/service"
	middlewares "sekolahsync_backend/internals/middlewares"
)

var startTime time.Time

type Deps struct {
	Orchestrator *service.Orchestrator
	Locks        *service.LockService
	Health       *service.HealthService
}

func SetupRoutes(app *fiber.App, db *gorm.DB, deps Deps) {
	startTime = time.Now()

	// ===================== PUBLIC =====================
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"uptime": time.Since(startTime).String(),
		})
	})

	// ===================== ADMIN (operator) =====================
	log.Println("[INFO] Setting up ADMIN group (OperatorAuth)...")
	admin := app.Group("/api/a", middlewares.OperatorAuth())

	syncRoute.SyncAdminRoutes(admin, db, deps.Orchestrator, deps.Locks, deps.Health)
}
