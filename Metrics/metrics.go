package Metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "avicrm",
		Subsystem: "tasks",
		Name:      "assigned_total",
		Help:      "Tasks accepted by the task dashboard store.",
	})

	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "avicrm",
		Subsystem: "tasks",
		Name:      "completed_total",
		Help:      "Task completions accepted by the notification store.",
	})

	// SecondaryWriteFailures counts absorbed failures on the store that is
	// not authoritative for the operation.
	SecondaryWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avicrm",
		Subsystem: "tasks",
		Name:      "secondary_write_failures_total",
		Help:      "Best-effort store writes that failed and were logged.",
	}, []string{"store", "operation"})

	ReconciledTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avicrm",
		Subsystem: "reconciler",
		Name:      "repairs_total",
		Help:      "Divergences repaired between the two task stores.",
	}, []string{"kind"})

	NotifierFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avicrm",
		Subsystem: "notifier",
		Name:      "failures_total",
		Help:      "Assignment notifications that could not be delivered.",
	}, []string{"channel"})

	ProxyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "avicrm",
		Subsystem: "workspace_proxy",
		Name:      "outcomes_total",
		Help:      "Workspace proxy responses by route and fallback tier.",
	}, []string{"route", "outcome"})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "avicrm",
		Subsystem: "realtime",
		Name:      "authenticated_connections",
		Help:      "Websocket connections currently registered to a user.",
	})
)
