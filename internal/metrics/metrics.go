// Package metrics declares the Prometheus collectors for workflows, phases,
// drones and the mailbox.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ollama_flow_workflows_started_total",
			Help: "Total number of workflows started",
		},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_flow_workflows_completed_total",
			Help: "Total number of workflows that reached a terminal status",
		},
		[]string{"status"},
	)

	WorkflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ollama_flow_workflow_duration_seconds",
			Help:    "Workflow execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	WorkflowConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ollama_flow_workflow_confidence",
			Help:    "Final confidence score of completed workflows",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ollama_flow_phase_duration_seconds",
			Help:    "Duration of a workflow phase, barrier included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	// Task metrics
	TasksDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_flow_tasks_dispatched_total",
			Help: "Tasks handed to a drone",
		},
		[]string{"role"},
	)

	TasksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_flow_tasks_dropped_total",
			Help: "Tasks skipped because no drone was available",
		},
		[]string{"role"},
	)

	TaskTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_flow_task_timeouts_total",
			Help: "Tasks resolved to a fallback result after the task timeout",
		},
		[]string{"role"},
	)

	BackendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_flow_backend_failures_total",
			Help: "Language-model calls that failed and were recovered locally",
		},
		[]string{"role"},
	)

	// Pool metrics
	DronesBusy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ollama_flow_drones_busy",
			Help: "Drones currently holding a task",
		},
		[]string{"role"},
	)

	// Mailbox metrics
	MessagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollama_flow_messages_handled_total",
			Help: "Mailbox messages processed by drone loops",
		},
		[]string{"role", "outcome"},
	)
)
