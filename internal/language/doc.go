// Package language normalizes language codes and names for the dubbing
// pipeline. Input codes arrive in whatever form the caller or the transcriber
// produced (ISO 639-1, 639-2, BCP 47 tags); everything downstream works with
// the canonical two-letter base.
package language
