package subtitles_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubmaster/internal/subtitles"
	"dubmaster/internal/transcribe"
)

func TestTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{75.4, "00:01:15,400"},
		{78.9, "00:01:18,900"},
		{3661.001, "01:01:01,001"},
		{-5, "00:00:00,000"},
	}
	for _, tc := range cases {
		if got := subtitles.Timestamp(tc.seconds); got != tc.want {
			t.Errorf("Timestamp(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	for _, seconds := range []float64{0, 1.5, 75.4, 3599.999, 7261.25} {
		formatted := subtitles.Timestamp(seconds)
		parsed, err := subtitles.ParseTimestamp(formatted)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", formatted, err)
		}
		if diff := parsed - seconds; diff > 0.001 || diff < -0.001 {
			t.Errorf("round trip %v -> %q -> %v", seconds, formatted, parsed)
		}
	}
}

func TestFormatSRT(t *testing.T) {
	segments := []transcribe.Segment{
		{Index: 0, Start: 75.4, End: 78.9, Text: "hi", Translation: "नमस्ते"},
	}
	got := subtitles.FormatSRT(segments, subtitles.Original)
	want := "1\n00:01:15,400 --> 00:01:18,900\nhi\n\n"
	if got != want {
		t.Fatalf("FormatSRT = %q, want %q", got, want)
	}

	translated := subtitles.FormatSRT(segments, subtitles.Translated)
	if !strings.Contains(translated, "नमस्ते") {
		t.Fatalf("translated track missing translation: %q", translated)
	}
}

func TestFormatSRTSkipsEmptySegments(t *testing.T) {
	segments := []transcribe.Segment{
		{Index: 0, Start: 0, End: 1, Text: "one"},
		{Index: 1, Start: 1, End: 2, Text: "   "},
		{Index: 2, Start: 2, End: 3, Text: "three"},
	}
	got := subtitles.FormatSRT(segments, subtitles.Original)
	if strings.Contains(got, "   \n") {
		t.Fatalf("empty segment leaked into output: %q", got)
	}
	// The surviving cues renumber densely.
	if !strings.HasPrefix(got, "1\n") || !strings.Contains(got, "\n2\n00:00:02,000") {
		t.Fatalf("cue numbering not dense: %q", got)
	}
}

func TestWriteSRTAndCountCues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subtitles_hi.srt")
	segments := []transcribe.Segment{
		{Start: 0, End: 1, Text: "a", Translation: "x"},
		{Start: 1, End: 2, Text: "b", Translation: "y"},
		{Start: 2, End: 3, Text: "c", Translation: ""},
	}
	if err := subtitles.WriteSRT(path, segments, subtitles.Translated); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}
	count, err := subtitles.CountCues(path)
	if err != nil {
		t.Fatalf("CountCues failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 cues, got %d", count)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	if !strings.HasSuffix(string(data), "\n\n") {
		t.Fatalf("srt must end with a blank line: %q", string(data))
	}
}
