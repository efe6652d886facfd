package Controllers

import (
	"AviCRM/TaskSync"

	"github.com/gofiber/fiber/v2"
)

// NotificationController serves the profiles the mobile client polls
type NotificationController struct {
	Sync *TaskSync.Coordinator
}

func NewNotificationController(sync *TaskSync.Coordinator) *NotificationController {
	return &NotificationController{Sync: sync}
}

// GetProfile never fails: unknown users get the default empty profile.
func (c *NotificationController) GetProfile(ctx *fiber.Ctx) error {
	return ctx.JSON(c.Sync.Profile(ctx.Params("username")))
}

// CompleteTask marks a task completed from the mobile client
func (c *NotificationController) CompleteTask(ctx *fiber.Ctx) error {
	if _, err := c.Sync.Complete(ctx.UserContext(), ctx.Params("username"), ctx.Params("taskId")); err != nil {
		return respondError(ctx, err, "Task not found")
	}
	return ctx.JSON(fiber.Map{"success": true, "message": "Task completed successfully"})
}
