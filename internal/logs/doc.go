// Package logs reads the daemon log file for the CLI.
//
// Last returns the final lines of a file with bounded memory, and Follow
// streams lines appended after a byte offset until its context ends. Both
// treat a missing file as empty so callers can run before the daemon has
// written anything.
package logs
