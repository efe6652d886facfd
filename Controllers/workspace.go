package Controllers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"AviCRM/Metrics"
	"AviCRM/Workspace"
	"AviCRM/middleware"

	"github.com/gofiber/fiber/v2"
)

// FallbackTierHeader tells the client which rung of a ladder answered.
const FallbackTierHeader = "X-Fallback-Tier"

// WorkspaceController forwards workspace, category, project and task calls
// to the external workspace service.
type WorkspaceController struct {
	Client *Workspace.Client
	now    func() time.Time
}

func NewWorkspaceController(client *Workspace.Client) *WorkspaceController {
	return &WorkspaceController{Client: client, now: time.Now}
}

func (c *WorkspaceController) respondLadder(ctx *fiber.Ctx, route string, ladder Workspace.Ladder) error {
	body, outcome, err := ladder.Run(ctx.UserContext())
	if err != nil {
		body = json.RawMessage("[]")
		outcome = Workspace.Synthesized
	}
	Metrics.ProxyOutcomes.WithLabelValues(route, outcome.String()).Inc()

	ctx.Set(FallbackTierHeader, outcome.String())
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Send(body)
}

func (c *WorkspaceController) list(route string, segments ...string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		resolved := make([]string, len(segments))
		for i, s := range segments {
			if strings.HasPrefix(s, ":") {
				s = ctx.Params(s[1:])
			}
			resolved[i] = s
		}
		return c.respondLadder(ctx, route, Workspace.ListLadder(c.Client, Workspace.Path(resolved...)))
	}
}

func (c *WorkspaceController) ListWorkspaces() fiber.Handler {
	return c.list("workspaces", "workspaces")
}

func (c *WorkspaceController) ListCategories() fiber.Handler {
	return c.list("categories", "workspaces", ":workspaceId", "categories")
}

func (c *WorkspaceController) ListProjects() fiber.Handler {
	return c.list("projects", "workspaces", ":workspaceId", "projects")
}

func (c *WorkspaceController) ListWorkspaceTasks() fiber.Handler {
	return c.list("workspace_tasks", "workspaces", ":workspaceId", "tasks")
}

func (c *WorkspaceController) ListProjectTasks() fiber.Handler {
	return c.list("project_tasks", "workspaces", ":workspaceId", "projects", ":projectId", "tasks")
}

// ListCategoryProjects falls back from the category endpoint to filtering
// the full project list, then to placeholder projects.
func (c *WorkspaceController) ListCategoryProjects(ctx *fiber.Ctx) error {
	ladder := Workspace.CategoryProjectsLadder(c.Client, ctx.Params("workspaceId"), ctx.Params("categoryId"), c.now)
	return c.respondLadder(ctx, "category_projects", ladder)
}

// forward relays a mutation. Upstream failures keep their status code; no
// response at all is a 502.
func (c *WorkspaceController) forward(ctx *fiber.Ctx, method, failure string, successStatus int, segments ...string) error {
	var payload interface{}
	if method != http.MethodDelete && len(ctx.Body()) > 0 {
		var body interface{}
		if err := json.Unmarshal(ctx.Body(), &body); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Request body must be JSON"})
		}
		payload = body
	}

	status, body, err := c.Client.Do(ctx.UserContext(), method, Workspace.Path(segments...), payload)
	if err != nil {
		log.Printf("Workspace %s %s failed: %v", method, ctx.Path(), err)
		if status == 0 {
			status = fiber.StatusBadGateway
		}
		return ctx.Status(status).JSON(fiber.Map{"error": failure})
	}

	if successStatus == fiber.StatusNoContent {
		return ctx.SendStatus(fiber.StatusNoContent)
	}
	if len(body) == 0 {
		return ctx.SendStatus(status)
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Status(status).Send(body)
}

func (c *WorkspaceController) CreateCategory(ctx *fiber.Ctx) error {
	return c.forward(ctx, http.MethodPost, "Failed to create category", 0, "workspaces", ctx.Params("workspaceId"), "categories")
}

func (c *WorkspaceController) DeleteCategory(ctx *fiber.Ctx) error {
	return c.forward(ctx, http.MethodDelete, "Failed to delete category", fiber.StatusNoContent, "workspaces", ctx.Params("workspaceId"), "categories", ctx.Params("categoryId"))
}

func (c *WorkspaceController) CreateProject(ctx *fiber.Ctx) error {
	return c.forward(ctx, http.MethodPost, "Failed to create project", 0, "workspaces", ctx.Params("workspaceId"), "projects")
}

func (c *WorkspaceController) UpdateProject(ctx *fiber.Ctx) error {
	return c.forward(ctx, http.MethodPut, "Failed to update project", 0, "workspaces", ctx.Params("workspaceId"), "projects", ctx.Params("projectId"))
}

func (c *WorkspaceController) DeleteProject(ctx *fiber.Ctx) error {
	return c.forward(ctx, http.MethodDelete, "Failed to delete project", 0, "workspaces", ctx.Params("workspaceId"), "projects", ctx.Params("projectId"))
}

func (c *WorkspaceController) CreateTask(ctx *fiber.Ctx) error {
	return c.forward(ctx, http.MethodPost, "Failed to create task", 0, "workspaces", ctx.Params("workspaceId"), "tasks")
}

const defaultMobileUser = "Mobile User"

type noteInput struct {
	Note   string `json:"note"`
	Author string `json:"author"`
}

type timeEntryInput struct {
	Action string `json:"action" validate:"required"`
	User   string `json:"user"`
}

type changeOrderInput struct {
	Description string `json:"description"`
	User        string `json:"user"`
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// sendLocal posts a locally built record upstream. The mobile client is
// told it succeeded even when the upstream write fails.
func (c *WorkspaceController) sendLocal(ctx *fiber.Ctx, route string, payload interface{}, fallback fiber.Map, segments ...string) error {
	_, body, err := c.Client.Do(ctx.UserContext(), http.MethodPost, Workspace.Path(segments...), payload)
	if err != nil {
		log.Printf("Workspace %s not delivered, reporting local success: %v", route, err)
		Metrics.ProxyOutcomes.WithLabelValues(route, Workspace.Synthesized.String()).Inc()
		ctx.Set(FallbackTierHeader, Workspace.Synthesized.String())
		return ctx.JSON(fallback)
	}

	Metrics.ProxyOutcomes.WithLabelValues(route, Workspace.Success.String()).Inc()
	ctx.Set(FallbackTierHeader, Workspace.Success.String())
	if len(body) == 0 || !json.Valid(body) {
		return ctx.JSON(fallback)
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Send(body)
}

func (c *WorkspaceController) AddProjectNote(ctx *fiber.Ctx) error {
	var input noteInput
	if err := middleware.ParseBody(ctx, &input); err != nil {
		return respondError(ctx, err, "Invalid note")
	}

	now := c.now()
	projectID := ctx.Params("projectId")
	note := fiber.Map{
		"projectId": projectID,
		"note":      input.Note,
		"author":    orDefault(input.Author, defaultMobileUser),
		"timestamp": now.UTC().Format(time.RFC3339Nano),
		"id":        now.UnixMilli(),
	}
	return c.sendLocal(ctx, "project_notes", note,
		fiber.Map{"success": true, "message": "Note added successfully"},
		"projects", projectID, "notes")
}

func (c *WorkspaceController) AddTimeEntry(ctx *fiber.Ctx) error {
	var input timeEntryInput
	if err := middleware.ParseBody(ctx, &input); err != nil {
		return respondError(ctx, err, "Invalid time entry")
	}

	now := c.now()
	projectID := ctx.Params("projectId")
	entry := fiber.Map{
		"projectId": projectID,
		"action":    input.Action,
		"timestamp": now.UTC().Format(time.RFC3339Nano),
		"user":      orDefault(input.User, defaultMobileUser),
		"id":        now.UnixMilli(),
	}
	return c.sendLocal(ctx, "time_entries", entry,
		fiber.Map{"success": true, "message": fmt.Sprintf("Successfully %s", strings.ReplaceAll(input.Action, "_", " "))},
		"projects", projectID, "time-entries")
}

func (c *WorkspaceController) AddChangeOrder(ctx *fiber.Ctx) error {
	var input changeOrderInput
	if err := middleware.ParseBody(ctx, &input); err != nil {
		return respondError(ctx, err, "Invalid change order")
	}

	now := c.now()
	projectID := ctx.Params("projectId")
	id := fmt.Sprintf("co%d", now.UnixMilli())
	order := fiber.Map{
		"projectId":   projectID,
		"description": input.Description,
		"requestedBy": orDefault(input.User, defaultMobileUser),
		"timestamp":   now.UTC().Format(time.RFC3339Nano),
		"id":          id,
		"status":      "pending",
	}
	return c.sendLocal(ctx, "change_orders", order,
		fiber.Map{"success": true, "message": "Change order submitted successfully", "id": id},
		"projects", projectID, "change-orders")
}
