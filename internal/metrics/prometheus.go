package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lukas-pastva/web-spain-sub000/internal/process"
	"github.com/lukas-pastva/web-spain-sub000/internal/queue"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timelapse_jobs_total",
		Help: "Total number of finished video jobs, by kind and outcome",
	}, []string{"kind", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timelapse_job_duration_seconds",
		Help:    "Duration of video jobs that ran to completion or failure",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"kind"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timelapse_queue_depth",
		Help: "Number of jobs waiting to run",
	})

	JobRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timelapse_job_running",
		Help: "1 while a job is running",
	})

	FramesEncodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timelapse_frames_encoded_total",
		Help: "Total number of frames handed to the encoder",
	})
)

// Observe is a queue.Listener keeping the collectors in step with the queue.
func Observe(ev queue.Event) {
	QueueDepth.Set(float64(ev.QueueLength))
	kind := string(ev.Job.Kind)

	switch ev.Job.Status {
	case process.JobStatusRunning:
		JobRunning.Set(1)
		return
	case process.JobStatusQueued:
		return
	}

	JobRunning.Set(0)
	JobsTotal.WithLabelValues(kind, string(ev.Job.Status)).Inc()
	if ev.Job.Status == process.JobStatusSkipped {
		return
	}
	JobDuration.WithLabelValues(kind).Observe(ev.Job.Duration().Seconds())
	if ev.Job.Status == process.JobStatusDone && ev.Job.Kind.PerDay() {
		FramesEncodedTotal.Add(float64(ev.Result.Items))
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
