package daemon

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dubmaster/internal/queue"
	"dubmaster/internal/workflow"
)

// Dubbed-track volume arrives as a percentage and is stored as linear gain.
const (
	defaultDubVolume = 75
	minDubVolume     = 10
	maxDubVolume     = 100
)

type dubbingRequest struct {
	VideoURL           string `json:"video_url"`
	SourceLang         string `json:"source_lang"`
	TargetLang         string `json:"target_lang"`
	VoiceGender        string `json:"voice_gender"`
	PreserveBackground *bool  `json:"preserve_background"`
	DubVolume          int    `json:"dub_volume"`
}

func (r dubbingRequest) toJobRequest() (queue.Request, error) {
	sourceLang, err := normalizeLang(r.SourceLang, "en")
	if err != nil {
		return queue.Request{}, err
	}
	targetLang, err := normalizeLang(r.TargetLang, "hi")
	if err != nil {
		return queue.Request{}, err
	}

	gender := strings.ToLower(strings.TrimSpace(r.VoiceGender))
	switch gender {
	case "":
		gender = "female"
	case "male", "female", "auto":
	default:
		return queue.Request{}, fmt.Errorf("unsupported voice gender %q", r.VoiceGender)
	}

	volume := r.DubVolume
	if volume == 0 {
		volume = defaultDubVolume
	}
	if volume < minDubVolume || volume > maxDubVolume {
		return queue.Request{}, fmt.Errorf("dub_volume must be between %d and %d", minDubVolume, maxDubVolume)
	}

	preserve := true
	if r.PreserveBackground != nil {
		preserve = *r.PreserveBackground
	}

	return queue.Request{
		SourceURL:          strings.TrimSpace(r.VideoURL),
		SourceLang:         sourceLang,
		TargetLang:         targetLang,
		VoiceGender:        gender,
		PreserveBackground: preserve,
		DubVolume:          float64(volume) / 100,
	}, nil
}

type dubbingResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statusResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	Step          int    `json:"step"`
	TotalSteps    int    `json:"total_steps"`
	StepName      string `json:"step_name"`
	Progress      int    `json:"progress"`
	Message       string `json:"message"`
	Error         string `json:"error,omitempty"`
	DownloadReady bool   `json:"download_ready"`
	Title         string `json:"title,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func statusResponseFromJob(job *queue.Job) statusResponse {
	return statusResponse{
		JobID:         job.ID,
		Status:        string(job.Status),
		Step:          job.Step,
		TotalSteps:    queue.TotalSteps,
		StepName:      job.StepName,
		Progress:      job.Progress,
		Message:       job.Message,
		Error:         job.ErrorMessage,
		DownloadReady: job.DownloadReady,
		Title:         job.Title,
		CreatedAt:     job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type videoInfoRequest struct {
	URL string `json:"url"`
}

type videoInfoResponse struct {
	Success   bool   `json:"success"`
	Title     string `json:"title,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Uploader  string `json:"uploader,omitempty"`
	Error     string `json:"error,omitempty"`
}

type dependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type queueHealth struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

func queueSummary(summary queue.HealthSummary) queueHealth {
	return queueHealth{
		Total:      summary.Total,
		Pending:    summary.Pending,
		Processing: summary.Processing,
		Completed:  summary.Completed,
		Failed:     summary.Failed,
	}
}

type workflowStatus struct {
	Running    bool   `json:"running"`
	Workers    int    `json:"workers"`
	ActiveJobs int    `json:"active_jobs"`
	LastError  string `json:"last_error,omitempty"`
}

func workflowSummary(status workflow.Status) workflowStatus {
	return workflowStatus{
		Running:    status.Running,
		Workers:    status.Workers,
		ActiveJobs: status.ActiveJobs,
		LastError:  status.LastError,
	}
}

type healthResponse struct {
	Status         string             `json:"status"`
	VoiceCloning   bool               `json:"voice_cloning"`
	VoiceLanguages []string           `json:"voice_languages"`
	Queue          queueHealth        `json:"queue"`
	Workflow       workflowStatus     `json:"workflow"`
	Dependencies   []dependencyStatus `json:"dependencies"`
}

func parseFormBool(value string, fallback bool) *bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return &fallback
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return &fallback
	}
	return &parsed
}

func parseFormInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}
