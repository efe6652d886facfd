package TaskSync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"AviCRM/Directory"
	"AviCRM/Metrics"
	"AviCRM/Models"
	"AviCRM/Notifier"
	"AviCRM/Storage"
)

const notifyTimeout = 10 * time.Second

// Coordinator orders writes across the task dashboard and the notification
// profile. The dashboard is authoritative for assignment, the notification
// profile for completion; the other store is updated best-effort and repaired
// later by Reconcile. Work on one profile is serialized across goroutines and
// across processes sharing the data dir.
type Coordinator struct {
	resolver      *Directory.Resolver
	tasks         *Storage.TaskStore
	notifications *Storage.NotificationStore
	ids           *Storage.IDGenerator
	notifiers     Notifier.Fanout
	profiles      *Storage.ProfileLocks
	now           func() time.Time

	pending sync.WaitGroup
}

func NewCoordinator(resolver *Directory.Resolver, tasks *Storage.TaskStore, notifications *Storage.NotificationStore, ids *Storage.IDGenerator, notifiers Notifier.Fanout) *Coordinator {
	return &Coordinator{
		resolver:      resolver,
		tasks:         tasks,
		notifications: notifications,
		ids:           ids,
		notifiers:     notifiers,
		profiles:      Storage.NewProfileLocks(resolver.DataDir()),
		now:           time.Now,
	}
}

func (c *Coordinator) Resolver() *Directory.Resolver {
	return c.resolver
}

// Assign creates a task for employeeID from the caller's fields, kept as
// sent. The id, employeeId, assignedAt, status and completedAt the caller
// sent are replaced.
func (c *Coordinator) Assign(ctx context.Context, employeeID int64, fields Models.TaskFields) (Models.TaskRecord, error) {
	if employeeID <= 0 {
		return Models.TaskRecord{}, &Models.ValidationError{Fields: map[string]string{
			"employeeId": "employeeId is required and must be a positive number",
		}}
	}

	record := Models.TaskRecord{
		ID:         c.ids.Next(),
		EmployeeID: employeeID,
		AssignedAt: c.now().UTC(),
		Status:     Models.StatusAssigned,
		Fields:     fields.WithoutServerFields(),
	}

	entry := c.resolver.Resolve(employeeID)

	unlock, err := c.profiles.Lock(ctx, entry.ProfileDir)
	if err != nil {
		return Models.TaskRecord{}, fmt.Errorf("lock profile of employee %d: %w", employeeID, err)
	}
	if err := c.tasks.Append(entry.ProfileDir, record); err != nil {
		unlock()
		return Models.TaskRecord{}, fmt.Errorf("save task %d for employee %d: %w", record.ID, employeeID, err)
	}
	Metrics.TasksAssigned.Inc()

	if err := c.notifications.UpsertTask(entry.ProfileDir, entry.Username, employeeID, record, Models.DefaultNotificationSettings()); err != nil {
		Metrics.SecondaryWriteFailures.WithLabelValues("notification", "assign").Inc()
		log.Printf("Task %d saved for employee %d but notification profile %s was not updated: %v", record.ID, employeeID, entry.Username, err)
	}
	unlock()

	log.Printf("Task %d assigned to employee %d (%s)", record.ID, employeeID, entry.Username)
	c.announce(entry, record)
	return record, nil
}

// announce runs the notifiers detached from the request; Wait blocks until
// the in-flight ones finish.
func (c *Coordinator) announce(entry Directory.Entry, record Models.TaskRecord) {
	if len(c.notifiers) == 0 {
		return
	}
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		c.notifiers.TaskAssigned(ctx, entry, record)
	}()
}

func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// Complete marks taskID completed for the employee named by identity, which
// may be a username or a numeric employee id. It returns Models.ErrNotFound
// when the employee, profile or task does not exist.
func (c *Coordinator) Complete(ctx context.Context, identity, taskID string) (Models.TaskRecord, error) {
	entry, err := c.resolver.ResolveIdentity(identity)
	if err != nil {
		return Models.TaskRecord{}, err
	}
	return c.CompleteEntry(ctx, entry, taskID)
}

func (c *Coordinator) CompleteEntry(ctx context.Context, entry Directory.Entry, taskID string) (Models.TaskRecord, error) {
	unlock, err := c.profiles.Lock(ctx, entry.ProfileDir)
	if err != nil {
		return Models.TaskRecord{}, fmt.Errorf("lock profile of %s: %w", entry.Username, err)
	}
	defer unlock()

	completed, found, err := c.notifications.CompleteTask(entry.ProfileDir, entry.Username, taskID, c.now())
	if err != nil {
		return Models.TaskRecord{}, fmt.Errorf("complete task %s for %s: %w", taskID, entry.Username, err)
	}
	if !found {
		return Models.TaskRecord{}, fmt.Errorf("task %s for %s: %w", taskID, entry.Username, Models.ErrNotFound)
	}
	Metrics.TasksCompleted.Inc()

	at := c.now().UTC()
	if completed.CompletedAt != nil {
		at = *completed.CompletedAt
	}
	mirrored, err := c.tasks.FindAndUpdate(entry.ProfileDir, taskID, func(t *Models.TaskRecord) error {
		t.MarkCompleted(at)
		return nil
	})
	switch {
	case err != nil:
		Metrics.SecondaryWriteFailures.WithLabelValues("dashboard", "complete").Inc()
		log.Printf("Task %s completed for %s but dashboard was not updated: %v", taskID, entry.Username, err)
	case !mirrored:
		Metrics.SecondaryWriteFailures.WithLabelValues("dashboard", "complete").Inc()
		log.Printf("Task %s completed for %s but is missing from dashboard %s", taskID, entry.Username, entry.ProfileDir)
	}

	log.Printf("Task %s completed by %s", taskID, entry.Username)
	return completed, nil
}

// Tasks returns the dashboard array for employeeID, empty when there is none.
func (c *Coordinator) Tasks(employeeID int64) []Models.TaskRecord {
	if employeeID <= 0 {
		return []Models.TaskRecord{}
	}
	entry := c.resolver.Resolve(employeeID)
	return c.tasks.ReadAll(entry.ProfileDir)
}

// Profile returns the username's notification profile, or the default empty
// profile when the user is unknown or has no assignments yet.
func (c *Coordinator) Profile(username string) Models.NotificationProfile {
	entry, err := c.resolver.ResolveUsername(username)
	if err != nil {
		if !errors.Is(err, Models.ErrNotFound) {
			log.Printf("Resolving %q failed: %v", username, err)
		}
		return Models.NewNotificationProfile(username, 0, c.now())
	}

	profile, found := c.notifications.Read(entry.ProfileDir, entry.Username)
	if !found {
		return Models.NewNotificationProfile(username, entry.EmployeeID, c.now())
	}
	return profile
}
