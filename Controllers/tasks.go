package Controllers

import (
	"encoding/json"
	"strconv"
	"strings"

	"AviCRM/Models"
	"AviCRM/TaskSync"
	"AviCRM/middleware"

	"github.com/gofiber/fiber/v2"
)

// TaskController handles task assignment and the admin dashboard reads
type TaskController struct {
	Sync *TaskSync.Coordinator
}

func NewTaskController(sync *TaskSync.Coordinator) *TaskController {
	return &TaskController{Sync: sync}
}

type assignTarget struct {
	EmployeeID int64 `json:"employeeId" validate:"required,gt=0"`
}

// parseAssignment splits the body into the target employee and the task
// fields, which are kept as sent. employeeId may be sent as a number or a
// numeric string.
func parseAssignment(body []byte) (int64, Models.TaskFields, error) {
	fields, err := Models.ParseTaskFields(body)
	if err != nil {
		return 0, nil, &Models.ValidationError{Fields: map[string]string{"body": "request body must be a JSON object"}}
	}

	var target assignTarget
	if v, ok := fields["employeeId"]; ok {
		text := strings.Trim(strings.TrimSpace(string(v)), `"`)
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, nil, &Models.ValidationError{Fields: map[string]string{"employeeId": "employeeId must be a number"}}
		}
		target.EmployeeID = id
	}
	if err := middleware.ValidateStruct(&target); err != nil {
		return 0, nil, err
	}
	return target.EmployeeID, fields.WithoutServerFields(), nil
}

// AssignTask creates a task for an employee
func (c *TaskController) AssignTask(ctx *fiber.Ctx) error {
	employeeID, fields, err := parseAssignment(ctx.Body())
	if err != nil {
		return respondError(ctx, err, "Failed to assign task")
	}

	record, err := c.Sync.Assign(ctx.UserContext(), employeeID, fields)
	if err != nil {
		return respondError(ctx, err, "Failed to assign task")
	}
	return ctx.Status(fiber.StatusCreated).JSON(record)
}

// AssignTaskLegacy is AssignTask with the response envelope the shipped
// admin UI expects: the record plus success, id and message.
func (c *TaskController) AssignTaskLegacy(ctx *fiber.Ctx) error {
	employeeID, fields, err := parseAssignment(ctx.Body())
	if err != nil {
		return respondError(ctx, err, "Failed to assign task")
	}

	record, err := c.Sync.Assign(ctx.UserContext(), employeeID, fields)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to assign task",
			"error":   err.Error(),
		})
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return respondError(ctx, err, "Failed to assign task")
	}
	response := fiber.Map{}
	if err := json.Unmarshal(encoded, &response); err != nil {
		return respondError(ctx, err, "Failed to assign task")
	}
	response["success"] = true
	response["message"] = "Task assigned successfully"
	return ctx.Status(fiber.StatusCreated).JSON(response)
}

// GetEmployeeTasks returns the dashboard array; anything unreadable is [].
func (c *TaskController) GetEmployeeTasks(ctx *fiber.Ctx) error {
	idParam := ctx.Params("employeeId")
	if idParam == "" {
		idParam = ctx.Params("userId")
	}
	employeeID, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		return ctx.JSON([]Models.TaskRecord{})
	}
	return ctx.JSON(c.Sync.Tasks(employeeID))
}

// CompleteEmployeeTask completes a task addressed by employee id
func (c *TaskController) CompleteEmployeeTask(ctx *fiber.Ctx) error {
	employeeID, err := strconv.ParseInt(ctx.Params("employeeId"), 10, 64)
	if err != nil || employeeID <= 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid employee ID"})
	}

	task, err := c.Sync.Complete(ctx.UserContext(), strconv.FormatInt(employeeID, 10), ctx.Params("taskId"))
	if err != nil {
		return respondError(ctx, err, "Task not found")
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"message": "Task completed successfully",
		"task":    task,
	})
}

// ReconcileEmployee repairs one employee's stores on demand
func (c *TaskController) ReconcileEmployee(ctx *fiber.Ctx) error {
	employeeID, err := strconv.ParseInt(ctx.Params("employeeId"), 10, 64)
	if err != nil || employeeID <= 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid employee ID"})
	}

	report, err := c.Sync.Reconcile(ctx.UserContext(), employeeID)
	if err != nil {
		return respondError(ctx, err, "Failed to reconcile tasks")
	}
	return ctx.JSON(report)
}
