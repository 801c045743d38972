// Package fetch acquires source videos from URLs via yt-dlp, both probing
// metadata and downloading the file a job will dub.
package fetch
