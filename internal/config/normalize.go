package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFFmpeg()
	c.normalizeFetch()
	c.normalizeWhisper()
	c.normalizeTranslator()
	c.normalizeTTS()
	c.normalizeFishAudio()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.ProbeBinary = strings.TrimSpace(c.FFmpeg.ProbeBinary)
	if c.FFmpeg.ProbeBinary == "" {
		c.FFmpeg.ProbeBinary = defaultFFprobeBinary
	}
	if c.FFmpeg.ExtractTimeoutSeconds <= 0 {
		c.FFmpeg.ExtractTimeoutSeconds = defaultExtractTimeoutSeconds
	}
	if c.FFmpeg.MixTimeoutSeconds <= 0 {
		c.FFmpeg.MixTimeoutSeconds = defaultMixTimeoutSeconds
	}
}

func (c *Config) normalizeFetch() {
	c.Fetch.Binary = strings.TrimSpace(c.Fetch.Binary)
	if c.Fetch.Binary == "" {
		c.Fetch.Binary = defaultFetchBinary
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeoutSeconds
	}
}

func (c *Config) normalizeWhisper() {
	c.Whisper.Binary = strings.TrimSpace(c.Whisper.Binary)
	if c.Whisper.Binary == "" {
		c.Whisper.Binary = defaultWhisperBinary
	}
	c.Whisper.Model = strings.TrimSpace(c.Whisper.Model)
	if c.Whisper.Model == "" {
		c.Whisper.Model = defaultWhisperModel
	}
	if c.Whisper.TimeoutSeconds <= 0 {
		c.Whisper.TimeoutSeconds = defaultWhisperTimeoutSeconds
	}
}

func (c *Config) normalizeTranslator() {
	if c.Translator.APIKey == "" {
		if value, ok := os.LookupEnv("DUBMASTER_TRANSLATOR_API_KEY"); ok {
			c.Translator.APIKey = value
		}
	}
	c.Translator.APIKey = strings.TrimSpace(c.Translator.APIKey)
	c.Translator.BaseURL = strings.TrimSpace(c.Translator.BaseURL)
	if c.Translator.BaseURL == "" {
		c.Translator.BaseURL = defaultTranslatorBaseURL
	}
	c.Translator.Model = strings.TrimSpace(c.Translator.Model)
	if c.Translator.Model == "" {
		c.Translator.Model = defaultTranslatorModel
	}
	if c.Translator.TimeoutSeconds <= 0 {
		c.Translator.TimeoutSeconds = defaultTranslatorTimeoutSeconds
	}
	if c.Translator.BatchSize <= 0 {
		c.Translator.BatchSize = defaultTranslatorBatchSize
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.Binary = strings.TrimSpace(c.TTS.Binary)
	if c.TTS.Binary == "" {
		c.TTS.Binary = defaultTTSBinary
	}
	if c.TTS.SegmentTimeoutSeconds <= 0 {
		c.TTS.SegmentTimeoutSeconds = defaultTTSSegmentTimeoutSeconds
	}
	if c.TTS.Workers <= 0 {
		c.TTS.Workers = defaultTTSWorkers
	}
}

func (c *Config) normalizeFishAudio() {
	if c.FishAudio.APIKey == "" {
		if value, ok := os.LookupEnv("FISH_AUDIO_API_KEY"); ok {
			c.FishAudio.APIKey = value
		}
	}
	c.FishAudio.APIKey = strings.TrimSpace(c.FishAudio.APIKey)
	c.FishAudio.BaseURL = strings.TrimSpace(c.FishAudio.BaseURL)
	if c.FishAudio.BaseURL == "" {
		c.FishAudio.BaseURL = defaultFishAudioBaseURL
	}
	if c.FishAudio.TimeoutSeconds <= 0 {
		c.FishAudio.TimeoutSeconds = defaultFishAudioTimeoutSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.MaxConcurrentJobs <= 0 {
		c.Workflow.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
