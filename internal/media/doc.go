// Package media wraps ffmpeg and ffprobe for the audio operations the
// pipeline needs: extracting speech audio, probing durations, merging
// synthesized segments, and mixing the dubbed track back into the video.
package media
