package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"dubmaster/internal/config"
	"dubmaster/internal/logging"
	"dubmaster/internal/services"
)

// Segment is a single timed span of recognized speech. Translation is
// filled in later by the translation stage and starts empty.
type Segment struct {
	Index       int
	Start       float64
	End         float64
	Text        string
	Translation string
}

// Transcription is the full output of a speech recognition pass.
type Transcription struct {
	Text     string
	Language string
	Segments []Segment
}

// Duration of the segment in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Service wraps the whisper command line tool.
type Service struct {
	cfg           config.Whisper
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a transcription service with the given configuration.
func NewService(cfg config.Whisper, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "transcribe")),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

// Transcribe runs speech recognition over an extracted audio file and
// parses the JSON output. language may be empty, in which case the model
// auto-detects the spoken language. The whole run is bounded by the
// configured timeout.
func (s *Service) Transcribe(ctx context.Context, audioPath, outputDir, language string) (*Transcription, error) {
	if audioPath == "" {
		return nil, services.Wrap(services.ErrValidation, "transcription", "transcribe", "audio path required", nil)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "transcribe", "ensure output dir", err)
	}

	timeout := time.Duration(s.cfg.TimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := s.buildArgs(audioPath, outputDir, language)
	s.logger.Info("running speech recognition",
		logging.String("model", s.cfg.Model),
		logging.String("audio", audioPath))

	start := time.Now()
	if err := s.run(runCtx, s.cfg.Binary, args...); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "transcription", "whisper",
				fmt.Sprintf("transcription timed out after %s", timeout), err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "whisper", "speech recognition failed", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	result, err := LoadTranscription(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "whisper", "parse transcription output", err)
	}

	s.logger.Info("speech recognition complete",
		logging.Int("segments", len(result.Segments)),
		logging.String("language", result.Language),
		logging.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (s *Service) buildArgs(audioPath, outputDir, language string) []string {
	args := []string{
		audioPath,
		"--model", s.cfg.Model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--task", "transcribe",
		"--verbose", "False",
	}
	if language != "" {
		args = append(args, "--language", language)
	}
	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

type whisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperPayload struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

// LoadTranscription parses a whisper JSON output file. Segment indices are
// assigned from slice order so downstream stages can rely on them being
// dense and zero-based regardless of the ids in the file.
func LoadTranscription(jsonPath string) (*Transcription, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisper json: %w", err)
	}

	result := &Transcription{
		Text:     strings.TrimSpace(payload.Text),
		Language: payload.Language,
		Segments: make([]Segment, 0, len(payload.Segments)),
	}
	for i, seg := range payload.Segments {
		result.Segments = append(result.Segments, Segment{
			Index: i,
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	if result.Text == "" {
		var parts []string
		for _, seg := range result.Segments {
			if seg.Text != "" {
				parts = append(parts, seg.Text)
			}
		}
		result.Text = strings.Join(parts, " ")
	}
	return result, nil
}
