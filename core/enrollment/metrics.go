package enrollment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// deletion reasons
const (
	reasonLeave     = "leave"
	reasonReconcile = "reconcile"
	reasonAdmin     = "admin"
)

var (
	progressUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studylab_progress_updates_total",
			Help: "Total number of progress upserts by kind (step, checklist)",
		},
		[]string{"kind"},
	)

	deletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studylab_enrollment_deletions_total",
			Help: "Total number of cascade-deleted enrollments by reason",
		},
		[]string{"reason"},
	)
)
