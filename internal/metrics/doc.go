// Package metrics exposes Prometheus collectors for the organize pipeline.
package metrics
