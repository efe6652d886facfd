package Notifier

import (
	"context"
	"log"

	"AviCRM/Directory"
	"AviCRM/Metrics"
	"AviCRM/Models"
)

// Notifier announces a freshly assigned task on one channel.
type Notifier interface {
	Name() string
	TaskAssigned(ctx context.Context, entry Directory.Entry, task Models.TaskRecord) error
}

// Fanout delivers to every notifier. Failures are logged and counted only;
// an assignment never fails because an announcement could not be sent.
type Fanout []Notifier

func (f Fanout) TaskAssigned(ctx context.Context, entry Directory.Entry, task Models.TaskRecord) {
	for _, n := range f {
		if err := n.TaskAssigned(ctx, entry, task); err != nil {
			Metrics.NotifierFailures.WithLabelValues(n.Name()).Inc()
			log.Printf("Notifier %s failed for task %d (%s): %v", n.Name(), task.ID, entry.Username, err)
		}
	}
}
