package subtitles

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"dubmaster/internal/transcribe"
)

// Text selects which segment field a subtitle track renders.
type Text int

const (
	// Original renders the transcribed source-language text.
	Original Text = iota
	// Translated renders the target-language translation.
	Translated
)

// FormatSRT renders segments as an SRT document. Cues are numbered
// sequentially from 1; segments whose selected text is empty are skipped
// and do not consume a cue number.
func FormatSRT(segments []transcribe.Segment, which Text) string {
	var b strings.Builder
	cue := 0
	for _, seg := range segments {
		text := seg.Text
		if which == Translated {
			text = seg.Translation
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		cue++
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", cue, Timestamp(seg.Start), Timestamp(seg.End), text)
	}
	return b.String()
}

// WriteSRT writes an SRT document for the segments to path.
func WriteSRT(path string, segments []transcribe.Segment, which Text) error {
	if err := os.WriteFile(path, []byte(FormatSRT(segments, which)), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// Timestamp formats seconds as an SRT timestamp (HH:MM:SS,mmm).
// Negative inputs clamp to zero.
func Timestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	millis := int64(math.Round(seconds * 1000))
	hours := millis / 3_600_000
	millis -= hours * 3_600_000
	minutes := millis / 60_000
	millis -= minutes * 60_000
	secs := millis / 1000
	millis -= secs * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// ParseTimestamp converts an SRT timestamp back to seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// Some tools emit a period instead of the standard comma.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

// CountCues returns the number of cue blocks in an SRT file.
func CountCues(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read srt: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return 0, nil
	}
	blocks := strings.Split(content, "\n\n")
	count := 0
	for _, block := range blocks {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count, nil
}
