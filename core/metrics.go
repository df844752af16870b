package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BestEffortFailures counts failures of side operations that must not fail their caller.
var BestEffortFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "studylab_best_effort_failures_total",
		Help: "Total number of swallowed failures of best-effort side operations",
	},
	[]string{"operation"},
)

// ReportBestEffortFailure logs & counts the failure of a best-effort operation.
func ReportBestEffortFailure(logger Logger, operation string, err error, fields ...map[string]interface{}) {
	BestEffortFailures.WithLabelValues(operation).Inc()
	if logger == nil {
		return
	}
	args := []interface{}{err}
	for _, f := range fields {
		args = append(args, f)
	}
	logger.Warn(operation+" failed", args...)
}
