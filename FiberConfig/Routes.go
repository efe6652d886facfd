package FiberConfig

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"AviCRM/Controllers"
	"AviCRM/Realtime"
	"AviCRM/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers are the controllers the routes dispatch to. Devices may be nil
// when no token database is configured, Logs when no request log is kept.
type Handlers struct {
	Tasks         *Controllers.TaskController
	Notifications *Controllers.NotificationController
	Devices       *Controllers.DeviceController
	Workspace     *Controllers.WorkspaceController
	Realtime      *Realtime.Channel
	Logs          *Controllers.LogController
	Admin         *Controllers.AdminController
}

// Options control the middleware stack.
type Options struct {
	JWTSecret      string
	RequestLogFile string
	// DisableRequestLog is used by tests.
	DisableRequestLog bool
}

func SetupRoutes(app *fiber.App, h Handlers, secret string) {
	admin := middleware.Verify(secret, middleware.PermissionAdmin)
	mobile := middleware.Verify(secret, middleware.PermissionMobile)
	owner := middleware.SameUser("username")

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Task assignment (admin dashboard)
	tasks := api.Group("/tasks", admin)
	tasks.Post("/", h.Tasks.AssignTask)
	tasks.Get("/:employeeId", h.Tasks.GetEmployeeTasks)
	tasks.Patch("/:employeeId/complete/:taskId", h.Tasks.CompleteEmployeeTask)
	tasks.Post("/:employeeId/reconcile", h.Tasks.ReconcileEmployee)

	// Notification profiles (mobile client)
	notifications := api.Group("/notifications", mobile)
	notifications.Get("/:username", owner, h.Notifications.GetProfile)
	notifications.Patch("/:username/complete/:taskId", owner, h.Notifications.CompleteTask)

	// Paths the shipped clients still call
	api.Post("/admin/task-assignments", admin, h.Tasks.AssignTaskLegacy)
	api.Get("/user/:userId/tasks", admin, h.Tasks.GetEmployeeTasks)
	android := api.Group("/android/task-notifications", mobile)
	android.Get("/:username", owner, h.Notifications.GetProfile)
	android.Patch("/:username/complete/:taskId", owner, h.Notifications.CompleteTask)

	if h.Devices != nil {
		api.Post("/devices/token", mobile, h.Devices.UpdateToken)
		api.Post("/UpdateToken", mobile, h.Devices.UpdateToken)
	}

	if h.Admin != nil {
		ops := api.Group("/admin", admin)
		ops.Get("/reconciler", h.Admin.GetReconcileSchedule)
		ops.Put("/reconciler", h.Admin.UpdateReconcileSchedule)
		ops.Get("/realtime/sessions", h.Admin.GetRealtimeSessions)
	}

	if h.Logs != nil {
		logs := api.Group("/logs", admin)
		logs.Get("/", h.Logs.GetLogs)
		logs.Get("/stats", h.Logs.GetLogStats)
	}

	// Workspace proxy
	ws := h.Workspace
	workspaces := api.Group("/workspaces", mobile)
	workspaces.Get("/", ws.ListWorkspaces())
	workspaces.Get("/:workspaceId/categories", ws.ListCategories())
	workspaces.Post("/:workspaceId/categories", ws.CreateCategory)
	workspaces.Delete("/:workspaceId/categories/:categoryId", ws.DeleteCategory)
	workspaces.Get("/:workspaceId/categories/:categoryId/projects", ws.ListCategoryProjects)
	workspaces.Get("/:workspaceId/projects", ws.ListProjects())
	workspaces.Post("/:workspaceId/projects", ws.CreateProject)
	workspaces.Put("/:workspaceId/projects/:projectId", ws.UpdateProject)
	workspaces.Delete("/:workspaceId/projects/:projectId", ws.DeleteProject)
	workspaces.Get("/:workspaceId/projects/:projectId/tasks", ws.ListProjectTasks())
	workspaces.Get("/:workspaceId/tasks", ws.ListWorkspaceTasks())
	workspaces.Post("/:workspaceId/tasks", ws.CreateTask)

	projects := api.Group("/projects", mobile)
	projects.Post("/:projectId/notes", ws.AddProjectNote)
	projects.Post("/:projectId/time-entries", ws.AddTimeEntry)
	projects.Post("/:projectId/change-orders", ws.AddChangeOrder)

	// Realtime channel; authentication happens in the first message.
	if h.Realtime != nil {
		app.Use("/ws", h.Realtime.Upgrade)
		app.Get("/ws", h.Realtime.Handler())
	}
}

// NewApp builds the fiber app with the middleware stack and all routes.
func NewApp(h Handlers, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "AviCRM",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	if !opts.DisableRequestLog {
		app.Use(middleware.RequestLogger(opts.RequestLogFile))
		if opts.RequestLogFile != "" {
			app.Use(middleware.ErrorLogger(filepath.Join(filepath.Dir(opts.RequestLogFile), "errors.log")))
		}
	}
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		ExposeHeaders: Controllers.FallbackTierHeader + ", X-Request-ID",
		MaxAge:        300,
	}))

	SetupRoutes(app, h, opts.JWTSecret)
	return app
}

// Serve listens on addr until SIGINT/SIGTERM, then drains in-flight requests
// and runs the shutdown hooks in order.
func Serve(app *fiber.App, addr string, onShutdown ...func()) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Printf("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	for _, hook := range onShutdown {
		hook()
	}
	log.Println("Server stopped")
	return nil
}
