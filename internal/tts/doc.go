// Package tts turns translated dialogue into a dubbed audio track.
//
// Two speaker implementations exist: EdgeSpeaker shells out to edge-tts
// with a per-language neural voice, and CloneSpeaker calls the Fish Audio
// API to mimic the original speaker from a short reference sample. The
// Engine runs an ordered speaker ladder over the segments, drops
// individual failures, and merges the surviving files with ffmpeg.
package tts
