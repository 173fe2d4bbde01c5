package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// thumbnailJobsTotal counts thumbnail jobs by result: ok, skipped,
	// retry, permanent.
	thumbnailJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fv_thumbnail_jobs_total",
		Help: "Thumbnail jobs processed, by result.",
	}, []string{"result"})

	thumbnailDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fv_thumbnail_duration_seconds",
		Help:    "Time to render and store all derivatives of one image.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	welcomeJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fv_welcome_jobs_total",
		Help: "Welcome jobs processed, by result.",
	}, []string{"result"})
)

func jobResult(err error, permanent bool) string {
	switch {
	case err == nil:
		return "ok"
	case permanent:
		return "permanent"
	}
	return "retry"
}
