// file: internals/features/sync/route/admin_route.go
package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	syncCtl "sekolahsync_backend/internals/features/sync/controller"
	"sekolahsync_backend/internals/features/sync/service"
	"sekolahsync_backend/internals/middlewares"
)

//   - /api/a/sync/...
func SyncAdminRoutes(r fiber.Router, db *gorm.DB, orch *service.Orchestrator, locks *service.LockService, health *service.HealthService) {
	ctrl := syncCtl.NewSyncController(db, orch, locks, health)

	grp := r.Group("/sync")
	grp.Post("/run", middlewares.SyncRunRateLimiter(), ctrl.RunSync)
	grp.Get("/history", ctrl.ListHistory)
	grp.Get("/changes/:syncId", ctrl.ListChanges)
	grp.Get("/warnings", ctrl.ListWarnings)
	grp.Patch("/warnings/:id", ctrl.AckWarning)
	grp.Get("/locks", ctrl.ListLocks)
	grp.Delete("/locks/:scope", ctrl.ForceReleaseLock)
	grp.Get("/health", ctrl.SyncHealth)
}
