// Package organize drives the resumable batch categorization job.
//
// An Orchestrator owns no goroutines. Each scheduler wake-up reloads the job
// record, advances exactly one step (initialize, one batch, or finalize),
// persists, and re-arms the next wake-up. A crash at any point resumes from
// the last persisted cursor.
package organize
