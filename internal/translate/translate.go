package translate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dubmaster/internal/logging"
	"dubmaster/internal/services"
	"dubmaster/internal/transcribe"
)

// DefaultBatchSize is the number of segments sent per translation request.
const DefaultBatchSize = 50

// Translator converts a batch of texts between languages, preserving order
// and length.
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// Segments translates every non-empty segment in place, filling in
// Segment.Translation. Empty segments are skipped but keep their position;
// the segment slice is never reordered or resized. A batch failure aborts
// the whole run.
func Segments(ctx context.Context, tr Translator, segments []transcribe.Segment, sourceLang, targetLang string, batchSize int, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	// Indices of segments that actually need translating.
	indices := make([]int, 0, len(segments))
	for i := range segments {
		if strings.TrimSpace(segments[i].Text) != "" {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil
	}

	start := time.Now()
	for offset := 0; offset < len(indices); offset += batchSize {
		end := offset + batchSize
		if end > len(indices) {
			end = len(indices)
		}
		batch := indices[offset:end]

		texts := make([]string, len(batch))
		for i, idx := range batch {
			texts[i] = segments[idx].Text
		}

		translations, err := tr.TranslateBatch(ctx, texts, sourceLang, targetLang)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "translation", "translate",
				"translation batch failed", err)
		}
		if len(translations) != len(batch) {
			return services.Wrap(services.ErrExternalTool, "translation", "translate",
				"translation batch returned wrong segment count", nil)
		}
		for i, idx := range batch {
			segments[idx].Translation = translations[i]
		}

		logger.Info("translated batch",
			logging.Int("batch_start", offset),
			logging.Int("batch_size", len(batch)),
			logging.Int("total", len(indices)))
	}

	logger.Info("translation complete",
		logging.Int("segments", len(indices)),
		logging.Duration("elapsed", time.Since(start)))
	return nil
}
