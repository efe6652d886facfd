package CronJobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"AviCRM/Directory"
	"AviCRM/TaskSync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSchedule = "@every 5m"
	passTimeout     = 2 * time.Minute
	maxWorkers      = 4
)

// Reconciler periodically walks every EMP_00<id> profile directory and
// repairs divergence between the two task stores.
type Reconciler struct {
	cronScheduler  *cron.Cron
	coordinator    *TaskSync.Coordinator
	dataDir        string
	schedule       string
	runImmediately bool

	mu    sync.Mutex
	jobID cron.EntryID
}

// NewReconciler creates a reconciler; an empty schedule means every five minutes.
func NewReconciler(coordinator *TaskSync.Coordinator, dataDir, schedule string, runImmediately bool) *Reconciler {
	if schedule == "" {
		schedule = defaultSchedule
	}
	return &Reconciler{
		cronScheduler: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		coordinator:    coordinator,
		dataDir:        dataDir,
		schedule:       schedule,
		runImmediately: runImmediately,
	}
}

func (r *Reconciler) job() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	if _, err := r.RunOnce(ctx); err != nil {
		log.Printf("Scheduled reconcile failed: %v", err)
	}
}

// Start initiates the reconcile cron job
func (r *Reconciler) Start() error {
	r.mu.Lock()
	var err error
	r.jobID, err = r.cronScheduler.AddFunc(r.schedule, r.job)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("error scheduling cron job: %w", err)
	}

	r.cronScheduler.Start()
	log.Printf("Task reconciler started with schedule %q", r.schedule)

	if r.runImmediately {
		go r.job()
	}
	return nil
}

// Stop terminates the scheduler and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	if r.cronScheduler != nil {
		<-r.cronScheduler.Stop().Done()
		log.Println("Task reconciler stopped")
	}
}

// UpdateSchedule changes the schedule of the reconciler. An invalid
// schedule leaves the current one running.
func (r *Reconciler) UpdateSchedule(schedule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobID, err := r.cronScheduler.AddFunc(schedule, r.job)
	if err != nil {
		return fmt.Errorf("error updating cron schedule: %w", err)
	}
	r.cronScheduler.Remove(r.jobID)
	r.jobID = jobID
	r.schedule = schedule
	log.Printf("Task reconciler schedule updated to %q", schedule)
	return nil
}

func (r *Reconciler) Schedule() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedule
}

// RunOnce reconciles every profile directory under the data root.
func (r *Reconciler) RunOnce(ctx context.Context) (TaskSync.ReconcileReport, error) {
	var total TaskSync.ReconcileReport

	entries, err := os.ReadDir(r.dataDir)
	if errors.Is(err, os.ErrNotExist) {
		return total, nil
	}
	if err != nil {
		return total, fmt.Errorf("list profiles in %s: %w", r.dataDir, err)
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	profiles := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		employeeID, ok := Directory.ParseProfileDirName(entry.Name())
		if !ok {
			continue
		}
		profiles++

		g.Go(func() error {
			report, err := r.coordinator.Reconcile(ctx, employeeID)
			if err != nil {
				return fmt.Errorf("reconcile employee %d: %w", employeeID, err)
			}
			mu.Lock()
			total.Add(report)
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	log.Printf("Reconciled %d profiles: %d added, %d completed in profile, %d completed in dashboard, %d restored to dashboard, %d failed",
		profiles, total.Added, total.CompletedInProfile, total.CompletedInDashboard, total.RestoredToDashboard, total.Failed)
	return total, err
}
