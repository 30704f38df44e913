package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"linksort/internal/events"
)

var (
	// JobsTotal counts finished jobs by outcome.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksort_jobs_total",
			Help: "Total number of organize jobs by outcome",
		},
		[]string{"outcome"},
	)

	// BatchesTotal counts processed batches.
	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linksort_batches_total",
			Help: "Total number of batches processed",
		},
	)

	// BatchRetriesTotal counts batches re-armed after provider exhaustion.
	BatchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linksort_batch_retries_total",
			Help: "Total number of batch retries after provider exhaustion",
		},
	)

	// BatchDuration tracks wall time per batch.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linksort_batch_duration_seconds",
			Help:    "Batch processing time in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ItemsTotal counts processed items by result.
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksort_items_total",
			Help: "Total number of items processed by result",
		},
		[]string{"result"},
	)

	// FoldersCreatedTotal counts folders created while filing items.
	FoldersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linksort_folders_created_total",
			Help: "Total number of folders created",
		},
	)

	// ProviderCallsTotal counts provider calls.
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linksort_provider_calls_total",
			Help: "Total number of classification provider calls",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency tracks provider call latency.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linksort_provider_latency_seconds",
			Help:    "Classification provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	// JobProgress is processed/total for the active job.
	JobProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linksort_job_progress_ratio",
			Help: "Fraction of the active job's items processed",
		},
	)

	// JobActive is 1 while a job is running.
	JobActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linksort_job_active",
			Help: "Whether an organize job is active",
		},
	)
)

// Sink feeds the collectors from job events and provider calls.
type Sink struct{}

// Publish implements events.Publisher.
func (Sink) Publish(_ context.Context, e events.Event) {
	switch e.Type {
	case events.TypeStarted:
		JobActive.Set(1)
		JobProgress.Set(0)
	case events.TypeProgress:
		b := e.Batch
		BatchesTotal.Inc()
		BatchDuration.Observe(b.Duration.Seconds())
		FoldersCreatedTotal.Add(float64(b.FoldersCreated))
		ItemsTotal.WithLabelValues("moved").Add(float64(b.Moved))
		ItemsTotal.WithLabelValues("error").Add(float64(b.Errors))
		ItemsTotal.WithLabelValues("unfiled").Add(float64(max(b.Items-b.Moved-b.Errors, 0)))
		if e.Total > 0 {
			JobProgress.Set(float64(e.Cursor) / float64(e.Total))
		}
	case events.TypeRetry:
		BatchRetriesTotal.Inc()
	case events.TypeCompleted:
		JobsTotal.WithLabelValues("completed").Inc()
		JobActive.Set(0)
		JobProgress.Set(1)
	case events.TypeFailed:
		JobsTotal.WithLabelValues("failed").Inc()
		JobActive.Set(0)
	}
}

// ObserveCall implements classify.Observer.
func (Sink) ObserveCall(provider, model string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ProviderCallsTotal.WithLabelValues(provider, model, status).Inc()
	ProviderLatency.WithLabelValues(provider, model).Observe(d.Seconds())
}
