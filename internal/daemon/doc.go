// Package daemon hosts the long-running linksort process.
//
// It holds a flock so only one instance drives the scheduler, re-arms an
// organize job left without a pending alarm, runs the scheduler loop, and
// optionally serves /metrics, /healthz, and /api/status over HTTP.
package daemon
