// Package learning holds host-keyed category patterns learned from user
// corrections and confident past classifications.
//
// During a job the patterns are read-only: they bias prompts as hints and
// stand in for classification when every provider fails. After a job
// finishes, confident results are offered back through Observe.
package learning
