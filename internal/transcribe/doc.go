// Package transcribe runs speech recognition over extracted audio via the
// whisper command line tool and parses its JSON output into timed segments.
//
// The Segment and Transcription types defined here are the shared currency
// of the pipeline: translation fills in Segment.Translation, synthesis
// voices it, and subtitle generation renders both languages from the same
// slice.
package transcribe
