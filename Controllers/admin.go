package Controllers

import (
	"AviCRM/CronJobs"
	"AviCRM/Models"
	"AviCRM/Realtime"
	"AviCRM/middleware"

	"github.com/gofiber/fiber/v2"
)

// AdminController exposes the background reconciler and the realtime
// connection registry to operators. Reconciler is nil when scheduling is off.
type AdminController struct {
	Reconciler *CronJobs.Reconciler
	Sessions   *Realtime.Registry
}

func NewAdminController(reconciler *CronJobs.Reconciler, sessions *Realtime.Registry) *AdminController {
	return &AdminController{Reconciler: reconciler, Sessions: sessions}
}

type scheduleRequest struct {
	Schedule string `json:"schedule" validate:"required"`
}

func (c *AdminController) GetReconcileSchedule(ctx *fiber.Ctx) error {
	if c.Reconciler == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reconciler is not running"})
	}
	return ctx.JSON(fiber.Map{"schedule": c.Reconciler.Schedule()})
}

// UpdateReconcileSchedule takes a cron spec such as "@every 10m" or "0 * * * *".
func (c *AdminController) UpdateReconcileSchedule(ctx *fiber.Ctx) error {
	if c.Reconciler == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reconciler is not running"})
	}

	var input scheduleRequest
	if err := middleware.ParseBody(ctx, &input); err != nil {
		return respondError(ctx, err, "Invalid schedule")
	}
	if err := c.Reconciler.UpdateSchedule(input.Schedule); err != nil {
		return respondError(ctx, &Models.ValidationError{Fields: map[string]string{"schedule": err.Error()}}, "Invalid schedule")
	}
	return ctx.JSON(fiber.Map{"schedule": c.Reconciler.Schedule()})
}

// GetRealtimeSessions lists open websocket sessions, optionally for one ?username=.
func (c *AdminController) GetRealtimeSessions(ctx *fiber.Ctx) error {
	sessions := c.Sessions.Sessions(ctx.Query("username"))
	return ctx.JSON(fiber.Map{
		"count":    len(sessions),
		"sessions": sessions,
	})
}
