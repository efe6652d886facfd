package Commands

import (
	"context"
	"log"

	"AviCRM/Controllers"
	"AviCRM/CronJobs"
	"AviCRM/FiberConfig"
	"AviCRM/Models"
	"AviCRM/Realtime"
	"AviCRM/Workspace"

	"github.com/spf13/cobra"
)

var (
	servePort     string
	skipReconcile bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (overrides PORT)")
	serveCmd.Flags().BoolVar(&skipReconcile, "no-reconcile", false, "Do not schedule the background reconciler")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if servePort != "" {
		cfg.Port = servePort
	}
	log.Println("Starting AviCRM server...")

	var devices *Controllers.DeviceController
	var tokens *Models.DeviceTokens
	db, err := Models.Connect(cfg.DBPath)
	if err != nil {
		log.Printf("Device token registry disabled: %v", err)
	} else {
		tokens = Models.NewDeviceTokens(db)
		devices = Controllers.NewDeviceController(tokens)
	}

	coordinator := newCoordinator(cfg, newNotifiers(context.Background(), cfg, tokens))
	upstream := Workspace.NewClient(cfg.UpstreamURL, cfg.UpstreamUser, cfg.UpstreamPassword, cfg.UpstreamTimeout)

	var logs *Controllers.LogController
	if cfg.RequestLogFile != "" {
		logs = Controllers.NewLogController(cfg.RequestLogFile)
	}

	shutdown := []func(){coordinator.Wait}
	var reconciler *CronJobs.Reconciler
	if !skipReconcile {
		reconciler = CronJobs.NewReconciler(coordinator, cfg.DataDir, cfg.ReconcileSchedule, true)
		if err := reconciler.Start(); err != nil {
			log.Printf("Failed to start reconciler: %v", err)
			reconciler = nil
		} else {
			shutdown = append([]func(){reconciler.Stop}, shutdown...)
		}
	}

	channel := Realtime.NewChannel(Realtime.NewRegistry(), cfg.JWTSecret)
	app := FiberConfig.NewApp(FiberConfig.Handlers{
		Tasks:         Controllers.NewTaskController(coordinator),
		Notifications: Controllers.NewNotificationController(coordinator),
		Devices:       devices,
		Workspace:     Controllers.NewWorkspaceController(upstream),
		Realtime:      channel,
		Logs:          logs,
		Admin:         Controllers.NewAdminController(reconciler, channel.Registry()),
	}, FiberConfig.Options{
		JWTSecret:      cfg.JWTSecret,
		RequestLogFile: cfg.RequestLogFile,
	})

	return FiberConfig.Serve(app, ":"+cfg.Port, shutdown...)
}
