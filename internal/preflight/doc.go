// Package preflight provides readiness checks for external services,
// binaries, and filesystem paths the dubbing daemon depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll and CheckSystemDeps at startup so a
//     misconfigured host fails fast instead of failing mid-job.
//   - The CLI "dubmaster status" command uses individual check functions
//     to display service health.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
