// Package services defines small shared helpers used by the pipeline
// components and provider integrations.
//
// It provides context helpers that stamp job ids, batch cursors, providers, and
// correlation ids for logging, plus error markers with a Wrap helper so the
// orchestrator can tell retryable failures from permanent ones.
package services
