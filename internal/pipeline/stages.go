package pipeline

// Error codes surfaced in status records when a stage fails.
const (
	CodeDownloadFailed      = "DOWNLOAD_FAILED"
	CodeExtractionFailed    = "EXTRACTION_FAILED"
	CodeTranscriptionFailed = "TRANSCRIPTION_FAILED"
	CodeTranslationFailed   = "TRANSLATION_FAILED"
	CodeSynthesisFailed     = "SYNTHESIS_FAILED"
	CodeMixFailed           = "MIX_FAILED"
	CodeUnexpected          = "UNEXPECTED"
)

// Step names shown to users while a job progresses.
const (
	StepNameDownloading  = "Downloading"
	StepNameExtracting   = "Extracting Audio"
	StepNameTranscribing = "Transcribing Speech"
	StepNameTranslating  = "Translating Dialogue"
	StepNameSynthesizing = "Synthesizing Voice"
	StepNameCloning      = "Cloning Voice"
	StepNameMixing       = "Mixing & Rendering"
)

// stageInfo describes one pipeline stage: its position, display name,
// the progress and messages reported as it starts and finishes, and the
// fixed message plus error code recorded if it fails.
type stageInfo struct {
	step           int
	name           string
	enterProgress  int
	enterMessage   string
	leaveMessage   string
	failureMessage string
	failureCode    string
}

var (
	stageExtract = stageInfo{1, StepNameExtracting, 10, "Extracting audio from video", "Audio extracted", "Failed to extract audio", CodeExtractionFailed}
	stageSpeech  = stageInfo{2, StepNameTranscribing, 20, "Transcribing speech", "Transcription complete", "Failed to transcribe speech", CodeTranscriptionFailed}
	stageDialog  = stageInfo{3, StepNameTranslating, 40, "Translating dialogue", "Translation complete", "Failed to translate dialogue", CodeTranslationFailed}
	stageVoice   = stageInfo{4, StepNameSynthesizing, 60, "Synthesizing voice", "Voice synthesis complete", "Failed to synthesize voice", CodeSynthesisFailed}
	stageMix     = stageInfo{5, StepNameMixing, 80, "Mixing audio and rendering video", "Dubbing complete", "Failed to mix audio", CodeMixFailed}
)

// cloning renders stage 4 with the cloning name when voice cloning is active.
func (s stageInfo) cloning() stageInfo {
	s.name = StepNameCloning
	s.enterMessage = "Cloning voice"
	s.leaveMessage = "Voice cloning complete"
	return s
}
