package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"dubmaster/internal/config"
	"dubmaster/internal/logging"
	"dubmaster/internal/services"
)

// VideoInfo describes a remote video without downloading it.
type VideoInfo struct {
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
	Uploader  string  `json:"uploader"`
}

// Client wraps the yt-dlp command line tool for source acquisition.
type Client struct {
	cfg           config.Fetch
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
	outputRunner  func(ctx context.Context, name string, args ...string) (string, error)
}

// NewClient creates a fetch client with the given configuration.
func NewClient(cfg config.Fetch, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "fetch")),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	c.commandRunner = runner
}

// WithOutputRunner sets a custom runner for commands whose stdout is parsed (for testing).
func (c *Client) WithOutputRunner(runner func(ctx context.Context, name string, args ...string) (string, error)) {
	c.outputRunner = runner
}

// Info probes a URL and returns basic metadata without downloading.
func (c *Client) Info(ctx context.Context, url string) (*VideoInfo, error) {
	if strings.TrimSpace(url) == "" {
		return nil, services.Wrap(services.ErrValidation, "download", "info", "url required", nil)
	}

	runCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	output, err := c.runOutput(runCtx, c.cfg.Binary, "-J", "--no-playlist", url)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "probe video info failed", err)
	}

	var info VideoInfo
	if err := json.Unmarshal([]byte(output), &info); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "parse video info", err)
	}
	return &info, nil
}

// Download fetches a video into workDir as original_video.<ext> and
// returns the resulting path. Formats are merged into mp4 when possible.
func (c *Client) Download(ctx context.Context, url, workDir string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", services.Wrap(services.ErrValidation, "download", "download", "url required", nil)
	}

	template := filepath.Join(workDir, "original_video.%(ext)s")
	args := []string{
		"--no-playlist",
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"-o", template,
		url,
	}

	runCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Info("downloading source video", logging.String("url", url))
	start := time.Now()
	if err := c.run(runCtx, c.cfg.Binary, args...); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "download", "yt-dlp", "download timed out", err)
		}
		return "", services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "video download failed", err)
	}

	matches, err := filepath.Glob(filepath.Join(workDir, "original_video.*"))
	if err != nil || len(matches) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "downloaded file not found", err)
	}
	c.logger.Info("download complete",
		logging.String("file", matches[0]),
		logging.Duration("elapsed", time.Since(start)))
	return matches[0], nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.TimeoutSeconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
}

func (c *Client) run(ctx context.Context, name string, args ...string) error {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (c *Client) runOutput(ctx context.Context, name string, args ...string) (string, error) {
	if c.outputRunner != nil {
		return c.outputRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(output), nil
}
