// Package pipeline drives a dubbing job through its five stages: audio
// extraction, speech recognition, dialogue translation, voice synthesis,
// and final mixing.
//
// The Orchestrator owns the status protocol. Every stage transition is
// persisted before work starts, failures pin the job to the failing step
// with a stable error code, and a recover handler converts panics into an
// UNEXPECTED failure so one bad job never kills a worker.
package pipeline
