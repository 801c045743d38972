// Package translate converts transcribed dialogue into the target language
// through an OpenAI-compatible chat completion API. Segments are sent in
// fixed-size batches and translations are written back in place so the
// timing information survives the round trip.
package translate
