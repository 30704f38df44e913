// Package scheduler implements durable wake-ups: "call me at or after T, even
// if this process is gone by then".
//
// Alarms live in an AlarmStore (SQLite or Redis in production). A Scheduler
// polls the store, fires due alarms through registered handlers, and clears
// an alarm only if the handler did not re-arm it. Delivery is at-least-once: a
// process that dies mid-callback leaves the alarm armed for the next one.
package scheduler
