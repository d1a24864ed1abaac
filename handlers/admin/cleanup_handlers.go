package admin

import (
	"fitchallenge/services"

	"github.com/gofiber/fiber/v2"
)

// ManualReconcile repairs counter drift now and returns what was fixed
// POST /api/admin/reconcile
func ManualReconcile(c *fiber.Ctx) error {
	svc := services.GetCleanupService()
	if svc == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "error": "Service unavailable"})
	}

	report, err := svc.Reconcile(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   services.MessageOf(err),
		})
	}
	return c.JSON(fiber.Map{"success": true, "repaired": report})
}

// GetReconcileStats reports the last completed reconcile run
// GET /api/admin/reconcile/stats
func GetReconcileStats(c *fiber.Ctx) error {
	svc := services.GetCleanupService()
	if svc == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "error": "Service unavailable"})
	}

	lastRun, report := svc.LastRun()
	stats := fiber.Map{"lastRun": nil, "repaired": report}
	if !lastRun.IsZero() {
		stats["lastRun"] = lastRun
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}
