// Package jobstate defines the durable record of one categorization job and
// the JSON-blob Store that reads and writes it.
//
// The whole job lives in a single record so every orchestrator transition is
// one read-modify-write. Create is create-if-absent and doubles as the
// single-active-job guard.
package jobstate
