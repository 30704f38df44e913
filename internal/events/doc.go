// Package events defines the milestones an organize job publishes (started,
// progress, retry, completed, failed) and small sinks for them. Notification
// and metrics packages implement Publisher so the orchestrator can fan out to
// all of them.
package events
