package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dubmaster/internal/logging"
	"dubmaster/internal/services"
)

// MixOptions controls how dubbed audio is combined with the source video.
type MixOptions struct {
	// PreserveBackground keeps the original audio underneath the dub at
	// reduced volume instead of replacing it outright.
	PreserveBackground bool
	// DubVolume scales the dubbed track (1.0 is unity gain).
	DubVolume float64
}

// MixAudio renders the final video: the source video stream is copied
// unchanged and the dubbed audio is either layered over the attenuated
// original track or substituted for it. The run is bounded by the
// configured mix timeout.
func (t *Tool) MixAudio(ctx context.Context, videoPath, dubbedAudio, dest string, opts MixOptions) error {
	volume := opts.DubVolume
	if volume <= 0 {
		volume = 1.0
	}
	volumeArg := strconv.FormatFloat(volume, 'g', -1, 64)

	var args []string
	if opts.PreserveBackground {
		filter := fmt.Sprintf(
			"[0:a]volume=0.1[bg];[1:a]volume=%s[dub];[bg][dub]amix=inputs=2:duration=longest:dropout_transition=0[aout]",
			volumeArg,
		)
		args = []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-i", videoPath,
			"-i", dubbedAudio,
			"-filter_complex", filter,
			"-map", "0:v",
			"-map", "[aout]",
			"-c:v", "copy",
			"-c:a", "aac",
			"-b:a", "192k",
			dest,
		}
	} else {
		args = []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-i", videoPath,
			"-i", dubbedAudio,
			"-map", "0:v",
			"-map", "1:a",
			"-c:v", "copy",
			"-c:a", "aac",
			"-b:a", "192k",
			"-af", "volume=" + volumeArg,
			"-shortest",
			dest,
		}
	}

	timeout := time.Duration(t.cfg.MixTimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t.logger.Info("mixing final video",
		logging.String("video", videoPath),
		logging.Bool("preserve_background", opts.PreserveBackground))
	if err := t.run(runCtx, t.cfg.Binary, args...); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "mix", "ffmpeg",
				fmt.Sprintf("mixing timed out after %s", timeout), err)
		}
		return services.Wrap(services.ErrExternalTool, "mix", "ffmpeg", "mixing failed", err)
	}
	return nil
}
