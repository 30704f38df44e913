// Package preflight runs startup checks shared by the daemon and the check
// command: directory permissions, link store readability, job store
// connectivity, and one health completion per configured provider.
package preflight
