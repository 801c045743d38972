package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dubmaster/internal/services"
)

// ConcatTimed joins audio segments into one track using the concat filter,
// which re-encodes and tolerates segments with differing encoder settings.
func (t *Tool) ConcatTimed(ctx context.Context, inputs []string, dest string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrValidation, "synthesis", "concat", "no segments to merge", nil)
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, input := range inputs {
		args = append(args, "-i", input)
	}

	var filter strings.Builder
	for i := range inputs {
		fmt.Fprintf(&filter, "[%d:a]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=0:a=1[out]", len(inputs))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[out]",
		dest,
	)

	timeout := time.Duration(t.cfg.MixTimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := t.run(runCtx, t.cfg.Binary, args...); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "synthesis", "concat",
				fmt.Sprintf("merge timed out after %s", timeout), err)
		}
		return services.Wrap(services.ErrExternalTool, "synthesis", "concat", "segment merge failed", err)
	}
	return nil
}

// ConcatFiles joins audio segments with the concat demuxer and stream
// copy. Faster than ConcatTimed but requires identically encoded inputs.
// listPath is where the demuxer list file is written.
func (t *Tool) ConcatFiles(ctx context.Context, inputs []string, listPath, dest string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrValidation, "synthesis", "concat", "no segments to merge", nil)
	}

	var list strings.Builder
	for _, input := range inputs {
		escaped := strings.ReplaceAll(input, "'", `'\''`)
		fmt.Fprintf(&list, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return services.Wrap(services.ErrExternalTool, "synthesis", "concat", "write concat list", err)
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		dest,
	}

	timeout := time.Duration(t.cfg.MixTimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := t.run(runCtx, t.cfg.Binary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "synthesis", "concat", "segment merge failed", err)
	}
	return nil
}
