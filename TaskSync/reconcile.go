package TaskSync

import (
	"context"
	"log"

	"AviCRM/Directory"
	"AviCRM/Metrics"
	"AviCRM/Models"
)

// ReconcileReport counts the repairs made for one profile.
type ReconcileReport struct {
	Added                int `json:"added"`
	CompletedInProfile   int `json:"completedInProfile"`
	CompletedInDashboard int `json:"completedInDashboard"`
	RestoredToDashboard  int `json:"restoredToDashboard"`
	Failed               int `json:"failed"`
}

func (r ReconcileReport) Changed() bool {
	return r.Added+r.CompletedInProfile+r.CompletedInDashboard+r.RestoredToDashboard > 0
}

func (r *ReconcileReport) Add(o ReconcileReport) {
	r.Added += o.Added
	r.CompletedInProfile += o.CompletedInProfile
	r.CompletedInDashboard += o.CompletedInDashboard
	r.RestoredToDashboard += o.RestoredToDashboard
	r.Failed += o.Failed
}

// Reconcile repairs the divergence best-effort writes can leave behind for
// one employee: tasks present in only one store are appended to the other,
// and a task completed in either store is completed in the other with the
// same completedAt. Status never moves backwards.
func (c *Coordinator) Reconcile(ctx context.Context, employeeID int64) (ReconcileReport, error) {
	return c.ReconcileEntry(ctx, c.resolver.Resolve(employeeID))
}

func (c *Coordinator) ReconcileEntry(ctx context.Context, entry Directory.Entry) (ReconcileReport, error) {
	var report ReconcileReport
	if err := ctx.Err(); err != nil {
		return report, err
	}

	unlock, err := c.profiles.Lock(ctx, entry.ProfileDir)
	if err != nil {
		return report, err
	}
	defer unlock()

	dashboard := c.tasks.ReadAll(entry.ProfileDir)
	profile, _ := c.notifications.Read(entry.ProfileDir, entry.Username)

	for _, task := range dashboard {
		idx := Models.FindTask(profile.Tasks, task.IDString())
		if idx < 0 {
			if err := c.notifications.UpsertTask(entry.ProfileDir, entry.Username, entry.EmployeeID, task, Models.DefaultNotificationSettings()); err != nil {
				report.Failed++
				log.Printf("Reconcile: could not add task %d to %s: %v", task.ID, entry.Username, err)
				continue
			}
			report.Added++
			Metrics.ReconciledTasks.WithLabelValues("added").Inc()
			continue
		}

		stored := profile.Tasks[idx]
		if task.Status == Models.StatusCompleted && stored.Status != Models.StatusCompleted {
			at := c.now()
			if task.CompletedAt != nil {
				at = *task.CompletedAt
			}
			if _, _, err := c.notifications.CompleteTask(entry.ProfileDir, entry.Username, task.IDString(), at); err != nil {
				report.Failed++
				log.Printf("Reconcile: could not complete task %d in %s: %v", task.ID, entry.Username, err)
				continue
			}
			report.CompletedInProfile++
			Metrics.ReconciledTasks.WithLabelValues("completed_in_profile").Inc()
		}
	}

	for _, stored := range profile.Tasks {
		idx := Models.FindTask(dashboard, stored.IDString())
		if idx < 0 {
			restored := stored
			if restored.EmployeeID == 0 {
				restored.EmployeeID = entry.EmployeeID
			}
			if err := c.tasks.Append(entry.ProfileDir, restored); err != nil {
				report.Failed++
				log.Printf("Reconcile: could not restore task %d to dashboard %s: %v", stored.ID, entry.ProfileDir, err)
				continue
			}
			report.RestoredToDashboard++
			Metrics.ReconciledTasks.WithLabelValues("restored_to_dashboard").Inc()
			continue
		}
		if stored.Status != Models.StatusCompleted || dashboard[idx].Status == Models.StatusCompleted {
			continue
		}

		at := c.now()
		if stored.CompletedAt != nil {
			at = *stored.CompletedAt
		}
		_, err := c.tasks.FindAndUpdate(entry.ProfileDir, stored.IDString(), func(t *Models.TaskRecord) error {
			t.MarkCompleted(at)
			return nil
		})
		if err != nil {
			report.Failed++
			log.Printf("Reconcile: could not complete task %d in dashboard %s: %v", stored.ID, entry.ProfileDir, err)
			continue
		}
		report.CompletedInDashboard++
		Metrics.ReconciledTasks.WithLabelValues("completed_in_dashboard").Inc()
	}

	if report.Changed() {
		log.Printf("Reconciled %s: %d added, %d completed in profile, %d completed in dashboard, %d restored to dashboard", entry.Username, report.Added, report.CompletedInProfile, report.CompletedInDashboard, report.RestoredToDashboard)
	}
	return report, nil
}
