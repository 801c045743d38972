// Command dubmasterd runs the video dubbing daemon and provides small
// operational subcommands: config management, job listing, and readiness
// checks.
package main
