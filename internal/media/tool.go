package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"dubmaster/internal/config"
	"dubmaster/internal/logging"
	"dubmaster/internal/services"
)

// Tool wraps the ffmpeg and ffprobe command line tools.
type Tool struct {
	cfg           config.FFmpeg
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
	outputRunner  func(ctx context.Context, name string, args ...string) (string, error)
}

// NewTool creates a media tool with the given configuration.
func NewTool(cfg config.FFmpeg, logger *slog.Logger) *Tool {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tool{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "media")),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (t *Tool) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	t.commandRunner = runner
}

// WithOutputRunner sets a custom runner for commands whose stdout is parsed (for testing).
func (t *Tool) WithOutputRunner(runner func(ctx context.Context, name string, args ...string) (string, error)) {
	t.outputRunner = runner
}

// ExtractAudio pulls the audio track out of a video file as mono 16kHz
// PCM WAV, the format speech recognition expects. The run is bounded by
// the configured extraction timeout.
func (t *Tool) ExtractAudio(ctx context.Context, videoPath, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		dest,
	}

	timeout := time.Duration(t.cfg.ExtractTimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t.logger.Info("extracting audio", logging.String("video", videoPath))
	if err := t.run(runCtx, t.cfg.Binary, args...); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "extraction", "ffmpeg",
				fmt.Sprintf("audio extraction timed out after %s", timeout), err)
		}
		return services.Wrap(services.ErrExternalTool, "extraction", "ffmpeg", "audio extraction failed", err)
	}
	return nil
}

// ExtractVoiceSample extracts a short audio sample suitable for voice
// cloning: 44.1kHz mono, capped at sampleSeconds from the start.
func (t *Tool) ExtractVoiceSample(ctx context.Context, videoPath, dest string, sampleSeconds int) error {
	if sampleSeconds <= 0 {
		sampleSeconds = 30
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-t", strconv.Itoa(sampleSeconds),
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "1",
		dest,
	}

	timeout := time.Duration(t.cfg.ExtractTimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := t.run(runCtx, t.cfg.Binary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "extraction", "ffmpeg", "voice sample extraction failed", err)
	}
	return nil
}

// Duration probes a media file and returns its duration in seconds.
func (t *Tool) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	output, err := t.runOutput(ctx, t.cfg.ProbeBinary, args...)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "probe", "ffprobe", "probe duration failed", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(output), 64)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "probe", "ffprobe",
			fmt.Sprintf("unparseable duration %q", strings.TrimSpace(output)), err)
	}
	return duration, nil
}

func (t *Tool) run(ctx context.Context, name string, args ...string) error {
	if t.commandRunner != nil {
		return t.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (t *Tool) runOutput(ctx context.Context, name string, args ...string) (string, error) {
	if t.outputRunner != nil {
		return t.outputRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(output), nil
}
