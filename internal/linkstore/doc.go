// Package linkstore models the user's link tree: folders, saved links, and the
// four primitives the organizer needs (list, create folder, find child folder
// by title, move).
//
// Memory is the in-process implementation; File persists the same tree as a
// JSON document guarded by a flock so the CLI and daemon can share it.
// Neither offers delete or rename.
package linkstore
