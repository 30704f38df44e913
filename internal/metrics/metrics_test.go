package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"linksort/internal/events"
	"linksort/internal/metrics"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case out.Counter != nil:
		return out.GetCounter().GetValue()
	case out.Gauge != nil:
		return out.GetGauge().GetValue()
	}
	t.Fatal("unsupported metric type")
	return 0
}

func TestSinkCountsBatchesAndItems(t *testing.T) {
	ctx := context.Background()
	sink := metrics.Sink{}
	batches := value(t, metrics.BatchesTotal)
	moved := value(t, metrics.ItemsTotal.WithLabelValues("moved"))
	folders := value(t, metrics.FoldersCreatedTotal)

	sink.Publish(ctx, events.Event{Type: events.TypeStarted, Total: 10})
	if got := value(t, metrics.JobActive); got != 1 {
		t.Fatalf("expected active job gauge 1, got %v", got)
	}
	sink.Publish(ctx, events.Event{
		Type:   events.TypeProgress,
		Cursor: 5,
		Total:  10,
		Batch:  events.BatchStats{Items: 5, Moved: 4, Errors: 1, FoldersCreated: 2, Duration: time.Second},
	})

	if got := value(t, metrics.BatchesTotal) - batches; got != 1 {
		t.Fatalf("expected one batch counted, got %v", got)
	}
	if got := value(t, metrics.ItemsTotal.WithLabelValues("moved")) - moved; got != 4 {
		t.Fatalf("expected 4 moved items, got %v", got)
	}
	if got := value(t, metrics.FoldersCreatedTotal) - folders; got != 2 {
		t.Fatalf("expected 2 folders, got %v", got)
	}
	if got := value(t, metrics.JobProgress); got != 0.5 {
		t.Fatalf("expected progress 0.5, got %v", got)
	}

	sink.Publish(ctx, events.Event{Type: events.TypeFailed})
	if got := value(t, metrics.JobActive); got != 0 {
		t.Fatalf("expected inactive after failure, got %v", got)
	}
}

func TestSinkObservesProviderCalls(t *testing.T) {
	sink := metrics.Sink{}
	errCounter := metrics.ProviderCallsTotal.WithLabelValues("p", "m", "error")
	before := value(t, errCounter)
	sink.ObserveCall("p", "m", errors.New("boom"), 20*time.Millisecond)
	if got := value(t, errCounter) - before; got != 1 {
		t.Fatalf("expected one failed call, got %v", got)
	}
}
