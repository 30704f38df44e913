// Package snapshot saves point-in-time JSON copies of the link tree before an
// organize job mutates it. Snapshots are the user's rollback path; the
// organizer never restores them itself.
package snapshot
