package Commands

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"AviCRM/CronJobs"
	"AviCRM/TaskSync"

	"github.com/spf13/cobra"
)

var reconcileEmployee int64

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair divergence between task dashboards and notification profiles",
	Long:  `Runs one reconcile pass over every employee profile directory, or over a single employee with --employee, and prints the repairs made as JSON.`,
	RunE:  runReconcile,
}

func init() {
	reconcileCmd.Flags().Int64Var(&reconcileEmployee, "employee", 0, "Only reconcile this employee id")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	coordinator := newCoordinator(cfg, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		report TaskSync.ReconcileReport
		err    error
	)
	if reconcileEmployee > 0 {
		report, err = coordinator.Reconcile(ctx, reconcileEmployee)
	} else {
		report, err = CronJobs.NewReconciler(coordinator, cfg.DataDir, "", false).RunOnce(ctx)
	}
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
