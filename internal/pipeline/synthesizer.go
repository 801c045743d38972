package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"dubmaster/internal/config"
	"dubmaster/internal/logging"
	"dubmaster/internal/media"
	"dubmaster/internal/queue"
	"dubmaster/internal/transcribe"
	"dubmaster/internal/tts"
)

// voiceSampleSeconds is how much of the source audio feeds voice cloning.
const voiceSampleSeconds = 30

// VoiceSynthesizer is the production Synthesizer: it extracts a cloning
// sample when cloning is configured, builds the speaker ladder, and runs
// the synthesis engine.
type VoiceSynthesizer struct {
	cfg    *config.Config
	engine *tts.Engine
	fish   *tts.FishClient
	tool   *media.Tool
	logger *slog.Logger
}

// NewVoiceSynthesizer wires the synthesis stage.
func NewVoiceSynthesizer(cfg *config.Config, engine *tts.Engine, fish *tts.FishClient, tool *media.Tool, logger *slog.Logger) *VoiceSynthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &VoiceSynthesizer{
		cfg:    cfg,
		engine: engine,
		fish:   fish,
		tool:   tool,
		logger: logger.With(logging.String(logging.FieldComponent, "synthesizer")),
	}
}

// Synthesize implements Synthesizer. A failed voice sample extraction
// downgrades the job to the standard neural voice instead of failing it.
func (v *VoiceSynthesizer) Synthesize(ctx context.Context, job *queue.Job, segments []transcribe.Segment, workDir string) (string, error) {
	voiceSample := ""
	if v.cfg.VoiceCloningAvailable() {
		sample := filepath.Join(workDir, FileVoiceSample)
		if err := v.tool.ExtractVoiceSample(ctx, job.VideoPath, sample, voiceSampleSeconds); err != nil {
			v.logger.Warn("voice sample extraction failed, using standard voice",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		} else {
			voiceSample = sample
		}
	}

	speakers := tts.Speakers(v.cfg.TTS, v.fish, voiceSample, job.TargetLang, tts.ParseGender(job.VoiceGender), v.logger)
	return v.engine.Synthesize(ctx, segments, speakers, filepath.Join(workDir, DirTTS))
}
