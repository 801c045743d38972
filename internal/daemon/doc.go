// Package daemon hosts the long-running dubbing service: the HTTP API that
// accepts jobs and serves artifacts, the workflow manager that processes
// them, and the lock file that keeps a single instance owning the store.
package daemon
