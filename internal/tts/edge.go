package tts

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"dubmaster/internal/config"
	"dubmaster/internal/services"
)

// Speaker synthesizes a single piece of text into an audio file.
type Speaker interface {
	// Name identifies the speaker for logging.
	Name() string
	// Speak renders text as speech at dest.
	Speak(ctx context.Context, text, dest string) error
}

// EdgeSpeaker drives the edge-tts command line tool with a fixed neural voice.
type EdgeSpeaker struct {
	cfg           config.TTS
	voice         string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewEdgeSpeaker creates a speaker for the given neural voice.
func NewEdgeSpeaker(cfg config.TTS, voice string) *EdgeSpeaker {
	return &EdgeSpeaker{cfg: cfg, voice: voice}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *EdgeSpeaker) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Name implements Speaker.
func (s *EdgeSpeaker) Name() string {
	return "edge-tts/" + s.voice
}

// Speak implements Speaker. Each segment render is bounded by the
// configured per-segment timeout.
func (s *EdgeSpeaker) Speak(ctx context.Context, text, dest string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, "synthesis", "edge-tts", "empty text", nil)
	}

	timeout := time.Duration(s.cfg.SegmentTimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"--text", text,
		"--voice", s.voice,
		"--write-media", dest,
	}
	if err := s.run(runCtx, s.cfg.Binary, args...); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "synthesis", "edge-tts",
				fmt.Sprintf("segment synthesis timed out after %s", timeout), err)
		}
		return services.Wrap(services.ErrExternalTool, "synthesis", "edge-tts", "segment synthesis failed", err)
	}
	return nil
}

func (s *EdgeSpeaker) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
