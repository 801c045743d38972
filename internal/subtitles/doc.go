// Package subtitles renders timed transcription segments as SRT documents
// for both the source language and the translated dialogue.
package subtitles
