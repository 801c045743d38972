// Package workflow supervises the worker pool that drains the job queue.
// Each worker claims one pending job at a time and runs it through the
// pipeline; the pool size bounds how many jobs dub concurrently.
package workflow
