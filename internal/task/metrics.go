package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fcs_tasks_submitted_total",
		Help: "Task submissions by dispatch outcome.",
	}, []string{"outcome"})

	tasksFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fcs_tasks_finished_total",
		Help: "Tasks that reached a terminal status, by status and task kind.",
	}, []string{"status", "kind"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fcs_task_duration_seconds",
		Help:    "Time from claim to terminal transition.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	stuckTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fcs_tasks_stuck",
		Help: "Tasks RUNNING longer than the stuck threshold at the last check.",
	})
)
