// Package main hosts the linksort CLI entrypoint and command graph.
//
// Commands start and inspect organize jobs, manage the daemon process, edit
// the link store and learned patterns, and run preflight checks. Wiring lives
// in internal/daemonrun so the daemon and foreground commands share one
// runtime.
package main
