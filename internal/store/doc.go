// Package store persists linksort's durable state in SQLite (modernc.org/sqlite,
// pure Go).
//
// Three tables back three collaborators: job_state holds one JSON blob per
// job key for the jobstate package, alarms holds one fire time per callback id
// for the scheduler, and learned_patterns holds host-keyed patterns for the
// learning package. Writes retry briefly on SQLITE_BUSY so the CLI and the
// daemon can share the file.
package store
