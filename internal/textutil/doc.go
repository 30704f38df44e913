// Package textutil provides text helpers shared by the taxonomy generator,
// folder mutation, and snapshot naming.
//
//   - Folder-title normalization (NFC, collapsed whitespace) so titles coming
//     from different providers compare equal when they look equal.
//   - Token fingerprints and cosine similarity for spotting near-duplicate
//     category names.
//   - Filesystem-safe tokens for snapshot file names.
package textutil
