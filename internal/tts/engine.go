package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dubmaster/internal/config"
	"dubmaster/internal/logging"
	"dubmaster/internal/media"
	"dubmaster/internal/transcribe"
)

// ErrNoSegments is returned when not a single segment could be voiced.
var ErrNoSegments = errors.New("no segments synthesized")

// Engine renders translated segments as speech and merges them into one
// dubbed audio track.
//
// Speakers form a fallback ladder tried in order. Every speaker except
// the last must voice the complete segment set: any segment failure, or
// a merge failure, hands the whole set to the next speaker. Only the
// final speaker drops individual failed segments rather than failing
// the job.
type Engine struct {
	cfg    config.TTS
	tool   *media.Tool
	logger *slog.Logger
}

// NewEngine creates a synthesis engine.
func NewEngine(cfg config.TTS, tool *media.Tool, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		tool:   tool,
		logger: logger.With(logging.String(logging.FieldComponent, "tts")),
	}
}

// Synthesize voices every translated segment and returns the path of the
// merged dubbed audio track inside ttsDir. Segments with an empty
// translation are skipped. Returns ErrNoSegments when no speaker could
// voice anything.
func (e *Engine) Synthesize(ctx context.Context, segments []transcribe.Segment, speakers []Speaker, ttsDir string) (string, error) {
	if err := os.MkdirAll(ttsDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure tts dir: %w", err)
	}

	voiced := make([]transcribe.Segment, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg.Translation) != "" {
			voiced = append(voiced, seg)
		}
	}
	if len(voiced) == 0 {
		return "", ErrNoSegments
	}

	for i, speaker := range speakers {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		final := i == len(speakers)-1
		files, err := e.renderAll(ctx, voiced, speaker, ttsDir, final)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if !final {
				e.logger.Warn("speaker failed, retrying full set with next",
					logging.String("speaker", speaker.Name()),
					logging.Error(err))
				continue
			}
			return "", err
		}
		if len(files) == 0 {
			e.logger.Warn("speaker produced no audio",
				logging.String("speaker", speaker.Name()))
			continue
		}
		merged := filepath.Join(ttsDir, "dubbed_audio.mp3")
		if err := e.merge(ctx, files, ttsDir, merged); err != nil {
			if !final {
				e.logger.Warn("merge failed, retrying full set with next speaker",
					logging.String("speaker", speaker.Name()),
					logging.Error(err))
				continue
			}
			return "", err
		}
		e.logger.Info("synthesis complete",
			logging.String("speaker", speaker.Name()),
			logging.Int("segments", len(files)),
			logging.Int("dropped", len(voiced)-len(files)))
		return merged, nil
	}

	return "", ErrNoSegments
}

// renderAll voices segments concurrently with a bounded worker count,
// returning paths in segment order. When allowPartial is false a single
// segment failure aborts the pass so the caller can retry the whole set
// elsewhere; when true failed segments are logged and dropped.
func (e *Engine) renderAll(ctx context.Context, segments []transcribe.Segment, speaker Speaker, ttsDir string, allowPartial bool) ([]string, error) {
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]string, len(segments))
	var failed atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	start := time.Now()

	for i, seg := range segments {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			dest := filepath.Join(ttsDir, fmt.Sprintf("segment_%04d.mp3", seg.Index))
			if err := speaker.Speak(groupCtx, seg.Translation, dest); err != nil {
				if !allowPartial {
					return fmt.Errorf("segment %d: %w", seg.Index, err)
				}
				failed.Add(1)
				e.logger.Warn("segment synthesis failed, dropping",
					logging.String("speaker", speaker.Name()),
					logging.Int("segment", seg.Index),
					logging.Error(err))
				return nil
			}
			results[i] = dest
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	files := make([]string, 0, len(results))
	for _, path := range results {
		if path != "" {
			files = append(files, path)
		}
	}
	if dropped := failed.Load(); dropped > 0 {
		e.logger.Warn("segments dropped during synthesis",
			logging.String("speaker", speaker.Name()),
			logging.Int64("dropped", dropped),
			logging.Duration("elapsed", time.Since(start)))
	}
	return files, nil
}

// merge joins segment files with the concat filter first, falling back to
// the stream-copy demuxer when re-encoding fails.
func (e *Engine) merge(ctx context.Context, files []string, ttsDir, dest string) error {
	err := e.tool.ConcatTimed(ctx, files, dest)
	if err == nil {
		return nil
	}
	e.logger.Warn("filter merge failed, falling back to stream copy", logging.Error(err))

	listPath := filepath.Join(ttsDir, "segments.txt")
	if fallbackErr := e.tool.ConcatFiles(ctx, files, listPath, dest); fallbackErr != nil {
		return fmt.Errorf("merge segments: %w", fallbackErr)
	}
	return nil
}

// Speakers builds the fallback ladder for a job: the cloning speaker
// first when a usable voice sample and cloning client exist, then the
// standard neural voice.
func Speakers(cfg config.TTS, fish *FishClient, voiceSample, targetLang string, gender Gender, logger *slog.Logger) []Speaker {
	if logger == nil {
		logger = logging.NewNop()
	}
	var speakers []Speaker
	if fish.Available() && voiceSample != "" {
		if cloner, err := fish.Speaker(voiceSample); err == nil {
			speakers = append(speakers, cloner)
		} else {
			logger.Warn("voice cloning unavailable for job", logging.Error(err))
		}
	}
	speakers = append(speakers, NewEdgeSpeaker(cfg, VoiceFor(targetLang, gender)))
	return speakers
}
