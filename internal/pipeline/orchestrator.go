package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dubmaster/internal/config"
	"dubmaster/internal/logging"
	"dubmaster/internal/media"
	"dubmaster/internal/queue"
	"dubmaster/internal/services"
	"dubmaster/internal/subtitles"
	"dubmaster/internal/transcribe"
	"dubmaster/internal/translate"
)

// Artifact names inside a job's working directory.
const (
	FileExtractedAudio    = "extracted_audio.wav"
	FileTranscription     = "transcription.txt"
	FileOriginalSubtitles = "subtitles_original.srt"
	FileVoiceSample       = "voice_sample.wav"
	FileFinalVideo        = "dubbed_video.mp4"
	DirTTS                = "tts"
)

// TranslatedSubtitles returns the subtitle file name for a target language.
func TranslatedSubtitles(targetLang string) string {
	return "subtitles_" + targetLang + ".srt"
}

// MediaTool is the subset of ffmpeg operations the orchestrator drives
// directly. *media.Tool satisfies it.
type MediaTool interface {
	ExtractAudio(ctx context.Context, videoPath, dest string) error
	MixAudio(ctx context.Context, videoPath, dubbedAudio, dest string, opts media.MixOptions) error
}

// Transcriber produces timed segments from extracted audio.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, outputDir, language string) (*transcribe.Transcription, error)
}

// Synthesizer voices translated segments and returns the merged dubbed track.
type Synthesizer interface {
	Synthesize(ctx context.Context, job *queue.Job, segments []transcribe.Segment, workDir string) (string, error)
}

// Deps bundles the stage implementations the orchestrator drives.
type Deps struct {
	Media       MediaTool
	Transcriber Transcriber
	Translator  translate.Translator
	Synthesizer Synthesizer
}

// JobStore persists job state transitions. *queue.Store satisfies it.
type JobStore interface {
	Update(ctx context.Context, job *queue.Job) error
}

// Orchestrator runs the five dubbing stages for one job, persisting status
// after every transition so API clients always see fresh progress.
type Orchestrator struct {
	cfg    *config.Config
	store  JobStore
	deps   Deps
	logger *slog.Logger
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(cfg *config.Config, store JobStore, deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		deps:   deps,
		logger: logger.With(logging.String(logging.FieldComponent, "pipeline")),
	}
}

// Run executes all stages for the job. The job must already hold a valid
// WorkDir and VideoPath. On any failure the job is persisted as failed
// with the stage's error code; a panic is converted into an UNEXPECTED
// failure rather than taking down the worker.
func (o *Orchestrator) Run(ctx context.Context, job *queue.Job) (err error) {
	ctx = services.WithJobID(ctx, job.ID)
	logger := o.logger.With(logging.String(logging.FieldJobID, job.ID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", logging.Any("panic", r))
			job.SetFailed(0, "", "An unexpected error occurred", CodeUnexpected)
			o.persist(job)
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	start := time.Now()
	logger.Info("starting dubbing pipeline",
		logging.String("video", job.VideoPath),
		logging.String("source_lang", job.SourceLang),
		logging.String("target_lang", job.TargetLang))

	audioPath, err := o.runExtract(ctx, job, logger)
	if err != nil {
		return err
	}
	transcription, err := o.runTranscribe(ctx, job, audioPath, logger)
	if err != nil {
		return err
	}
	if err := o.runTranslate(ctx, job, transcription, logger); err != nil {
		return err
	}
	dubbedAudio, err := o.runSynthesize(ctx, job, transcription, logger)
	if err != nil {
		return err
	}
	if err := o.runMix(ctx, job, dubbedAudio, logger); err != nil {
		return err
	}

	logger.Info("dubbing pipeline complete",
		logging.String("final_file", job.FinalFile),
		logging.Duration("elapsed", time.Since(start)))
	return nil
}

func (o *Orchestrator) runExtract(ctx context.Context, job *queue.Job, logger *slog.Logger) (string, error) {
	o.enter(job, stageExtract)

	audioPath := filepath.Join(job.WorkDir, FileExtractedAudio)
	if err := o.deps.Media.ExtractAudio(ctx, job.VideoPath, audioPath); err != nil {
		return "", o.fail(job, stageExtract, err, logger)
	}
	o.leave(job, stageExtract)
	return audioPath, nil
}

func (o *Orchestrator) runTranscribe(ctx context.Context, job *queue.Job, audioPath string, logger *slog.Logger) (*transcribe.Transcription, error) {
	o.enter(job, stageSpeech)

	transcription, err := o.deps.Transcriber.Transcribe(ctx, audioPath, job.WorkDir, job.SourceLang)
	if err != nil {
		return nil, o.fail(job, stageSpeech, err, logger)
	}

	// Persist the text artifacts alongside the audio so users can download
	// the transcript even if a later stage fails.
	textPath := filepath.Join(job.WorkDir, FileTranscription)
	if writeErr := os.WriteFile(textPath, []byte(transcription.Text+"\n"), 0o644); writeErr != nil {
		return nil, o.fail(job, stageSpeech, writeErr, logger)
	}
	srtPath := filepath.Join(job.WorkDir, FileOriginalSubtitles)
	if writeErr := subtitles.WriteSRT(srtPath, transcription.Segments, subtitles.Original); writeErr != nil {
		return nil, o.fail(job, stageSpeech, writeErr, logger)
	}
	o.leave(job, stageSpeech)
	return transcription, nil
}

func (o *Orchestrator) runTranslate(ctx context.Context, job *queue.Job, transcription *transcribe.Transcription, logger *slog.Logger) error {
	o.enter(job, stageDialog)

	sourceLang := job.SourceLang
	if sourceLang == "" {
		sourceLang = transcription.Language
	}
	err := translate.Segments(ctx, o.deps.Translator, transcription.Segments,
		sourceLang, job.TargetLang, o.cfg.Translator.BatchSize, logger)
	if err != nil {
		return o.fail(job, stageDialog, err, logger)
	}

	srtPath := filepath.Join(job.WorkDir, TranslatedSubtitles(job.TargetLang))
	if writeErr := subtitles.WriteSRT(srtPath, transcription.Segments, subtitles.Translated); writeErr != nil {
		return o.fail(job, stageDialog, writeErr, logger)
	}
	o.leave(job, stageDialog)
	return nil
}

func (o *Orchestrator) runSynthesize(ctx context.Context, job *queue.Job, transcription *transcribe.Transcription, logger *slog.Logger) (string, error) {
	stage := stageVoice
	if o.cfg.VoiceCloningAvailable() {
		stage = stage.cloning()
	}
	o.enter(job, stage)

	dubbedAudio, err := o.deps.Synthesizer.Synthesize(ctx, job, transcription.Segments, job.WorkDir)
	if err != nil {
		return "", o.fail(job, stage, err, logger)
	}
	o.leave(job, stage)
	return dubbedAudio, nil
}

func (o *Orchestrator) runMix(ctx context.Context, job *queue.Job, dubbedAudio string, logger *slog.Logger) error {
	o.enter(job, stageMix)

	finalPath := filepath.Join(job.WorkDir, FileFinalVideo)
	opts := media.MixOptions{
		PreserveBackground: job.PreserveBackground,
		DubVolume:          job.DubVolume,
	}
	if err := o.deps.Media.MixAudio(ctx, job.VideoPath, dubbedAudio, finalPath, opts); err != nil {
		return o.fail(job, stageMix, err, logger)
	}
	if _, err := os.Stat(finalPath); err != nil {
		return o.fail(job, stageMix, fmt.Errorf("final video missing: %w", err), logger)
	}

	job.SetCompleted(finalPath, stageMix.leaveMessage)
	o.persist(job)
	return nil
}

// enter records the stage transition and persists it.
func (o *Orchestrator) enter(job *queue.Job, stage stageInfo) {
	job.SetStep(stage.step, stage.name, stage.enterProgress, stage.enterMessage)
	o.persist(job)
}

// leave posts the stage's own 100% before the next stage takes over, so
// status polls see each stage finish rather than jumping between entry
// marks.
func (o *Orchestrator) leave(job *queue.Job, stage stageInfo) {
	job.SetProgress(100, stage.leaveMessage)
	o.persist(job)
}

// fail persists the failure and returns the original error for the worker
// to log. The message field carries the stage's fixed failure text; the
// error field carries the taxonomy code plus the collaborator's detail.
func (o *Orchestrator) fail(job *queue.Job, stage stageInfo, err error, logger *slog.Logger) error {
	errorMessage := stage.failureCode
	if detail := services.Details(err).Message; detail != "" {
		errorMessage += ": " + detail
	}
	logger.Error("stage failed",
		logging.Int("step", stage.step),
		logging.String("step_name", stage.name),
		logging.Error(err))
	job.SetFailed(stage.step, stage.name, stage.failureMessage, errorMessage)
	o.persist(job)
	return err
}

// persist writes job state with a short timeout decoupled from the
// pipeline context, so failures are still recorded after cancellation.
func (o *Orchestrator) persist(job *queue.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.Update(ctx, job); err != nil {
		o.logger.Error("persist job state", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
	}
}
