// Package redisstore is the Redis backend for job state and alarms, selected
// with job_store.backend = "redis". Learned patterns always stay in SQLite.
package redisstore
