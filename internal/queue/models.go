package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a dubbing job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// TotalSteps is the number of pipeline stages a job passes through.
const TotalSteps = 5

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Request carries the parameters captured when a job is created.
type Request struct {
	SourceURL          string
	SourcePath         string
	Title              string
	SourceLang         string
	TargetLang         string
	VoiceGender        string
	PreserveBackground bool
	DubVolume          float64
}

// Job represents a dubbing job persisted in SQLite.
//
// Step tracks pipeline position: 0 before the first stage starts, then 1
// through 5 for extraction, transcription, translation, synthesis, and
// mixing. On failure Step holds the stage that failed. DownloadReady is
// true only for completed jobs whose final artifact exists on disk.
type Job struct {
	ID                 string
	Status             Status
	Step               int
	StepName           string
	Progress           int
	Message            string
	ErrorMessage       string
	DownloadReady      bool
	SourceURL          string
	SourcePath         string
	Title              string
	SourceLang         string
	TargetLang         string
	VoiceGender        string
	PreserveBackground bool
	DubVolume          float64
	WorkDir            string
	VideoPath          string
	FinalFile          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the job has finished, successfully or not.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// SetStep records entry into a pipeline stage. Status moves to processing
// and any stale error from a previous attempt is cleared.
func (j *Job) SetStep(step int, stepName string, progress int, message string) {
	j.Status = StatusProcessing
	j.Step = step
	j.StepName = stepName
	j.Progress = progress
	j.Message = message
	j.ErrorMessage = ""
}

// SetProgress updates progress within the current stage.
func (j *Job) SetProgress(progress int, message string) {
	j.Progress = progress
	j.Message = message
}

// SetCompleted marks the job finished with its final artifact path.
func (j *Job) SetCompleted(finalFile, message string) {
	j.Status = StatusCompleted
	j.Step = TotalSteps
	j.StepName = "Complete"
	j.Progress = 100
	j.Message = message
	j.ErrorMessage = ""
	j.FinalFile = finalFile
	j.DownloadReady = true
}

// SetFailed marks the job failed at the given stage. Progress resets to
// zero and the artifact is never downloadable.
func (j *Job) SetFailed(step int, stepName, message, errorMessage string) {
	j.Status = StatusFailed
	j.Step = step
	j.StepName = stepName
	j.Progress = 0
	j.Message = message
	j.ErrorMessage = errorMessage
	j.DownloadReady = false
}
