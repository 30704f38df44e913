// Package taxonomy generates the category vocabulary pinned into a job before
// its first batch. The vocabulary is built from an evenly spaced sample of
// the job's items, merged with seed categories, and cleaned of near-duplicate
// paths. Generation failure is not fatal: the job falls back to seeds plus the
// sentinel category.
package taxonomy
