package config

const (
	defaultOutputDir = "~/.local/share/dubmaster/outputs"
	defaultUploadDir = "~/.local/share/dubmaster/uploads"
	defaultLogDir    = "~/.local/share/dubmaster/logs"
	defaultAPIBind   = "127.0.0.1:8746"
	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultExtractTimeoutSeconds = 300
	defaultMixTimeoutSeconds     = 600

	defaultFetchBinary         = "yt-dlp"
	defaultFetchTimeoutSeconds = 1800

	defaultWhisperBinary         = "whisper"
	defaultWhisperModel          = "base"
	defaultWhisperTimeoutSeconds = 1800

	defaultTranslatorBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultTranslatorModel          = "google/gemini-3-flash-preview"
	defaultTranslatorTimeoutSeconds = 60
	defaultTranslatorBatchSize      = 50

	defaultTTSBinary                = "edge-tts"
	defaultTTSSegmentTimeoutSeconds = 120
	defaultTTSWorkers               = 4

	defaultFishAudioBaseURL        = "https://api.fish.audio"
	defaultFishAudioTimeoutSeconds = 120

	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 10
	defaultMaxConcurrentJobs  = 2
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			UploadDir: defaultUploadDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		FFmpeg: FFmpeg{
			Binary:                defaultFFmpegBinary,
			ProbeBinary:           defaultFFprobeBinary,
			ExtractTimeoutSeconds: defaultExtractTimeoutSeconds,
			MixTimeoutSeconds:     defaultMixTimeoutSeconds,
		},
		Fetch: Fetch{
			Binary:         defaultFetchBinary,
			TimeoutSeconds: defaultFetchTimeoutSeconds,
		},
		Whisper: Whisper{
			Binary:         defaultWhisperBinary,
			Model:          defaultWhisperModel,
			TimeoutSeconds: defaultWhisperTimeoutSeconds,
		},
		Translator: Translator{
			BaseURL:        defaultTranslatorBaseURL,
			Model:          defaultTranslatorModel,
			TimeoutSeconds: defaultTranslatorTimeoutSeconds,
			BatchSize:      defaultTranslatorBatchSize,
		},
		TTS: TTS{
			Binary:                defaultTTSBinary,
			SegmentTimeoutSeconds: defaultTTSSegmentTimeoutSeconds,
			Workers:               defaultTTSWorkers,
		},
		FishAudio: FishAudio{
			BaseURL:        defaultFishAudioBaseURL,
			TimeoutSeconds: defaultFishAudioTimeoutSeconds,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxConcurrentJobs:  defaultMaxConcurrentJobs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
