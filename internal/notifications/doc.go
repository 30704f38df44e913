// Package notifications pushes organize job events to ntfy.
//
// The Service is an events.Publisher. Each event type is toggled separately
// in the [notifications] config section; an empty topic disables the package
// entirely.
package notifications
