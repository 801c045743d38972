package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate checks configuration invariants that normalization cannot repair.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		problems = append(problems, "paths.output_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must not be empty")
	}
	if bind := strings.TrimSpace(c.Paths.APIBind); bind != "" {
		if _, _, err := net.SplitHostPort(bind); err != nil {
			problems = append(problems, fmt.Sprintf("paths.api_bind %q is not host:port", bind))
		}
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q must be debug, info, warn, or error", c.Logging.Level))
	}

	if c.FishAudio.Enabled && c.FishAudio.APIKey == "" {
		problems = append(problems, "fish_audio.enabled requires fish_audio.api_key (or FISH_AUDIO_API_KEY)")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}

// VoiceCloningAvailable reports whether the cloning synthesizer is configured.
// Resolved once at startup and passed into the pipeline as a capability flag.
func (c *Config) VoiceCloningAvailable() bool {
	return c.FishAudio.Enabled && strings.TrimSpace(c.FishAudio.APIKey) != ""
}
