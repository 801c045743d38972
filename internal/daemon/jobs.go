package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dubmaster/internal/logging"
	"dubmaster/internal/pipeline"
	"dubmaster/internal/queue"
	"dubmaster/internal/services"
)

// CreateJobFromURL enqueues a dubbing job for a remote video. The download
// runs synchronously so the caller learns about unreachable sources
// immediately; a failed download leaves a FAILED job behind for status polls.
func (d *Daemon) CreateJobFromURL(ctx context.Context, req queue.Request) (*queue.Job, error) {
	if strings.TrimSpace(req.SourceURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "create job", "video_url is required", nil)
	}

	job, err := d.store.NewJob(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	if err := d.prepareWorkDir(ctx, job); err != nil {
		return job, err
	}

	job.SetStep(0, pipeline.StepNameDownloading, 5, "Downloading video from URL")
	if err := d.store.Update(ctx, job); err != nil {
		return job, fmt.Errorf("update job: %w", err)
	}

	videoPath, err := d.fetcher.Download(ctx, req.SourceURL, job.WorkDir)
	if err != nil {
		errorMessage := pipeline.CodeDownloadFailed
		if detail := services.Details(err).Message; detail != "" {
			errorMessage += ": " + detail
		}
		job.SetFailed(0, pipeline.StepNameDownloading, "Failed to download video", errorMessage)
		if updateErr := d.store.Update(ctx, job); updateErr != nil {
			d.logger.Error("failed to record download failure",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(updateErr))
		}
		return job, fmt.Errorf("download video: %w", err)
	}

	job.VideoPath = videoPath
	d.markQueued(job)
	if err := d.store.Update(ctx, job); err != nil {
		return job, fmt.Errorf("update job: %w", err)
	}

	d.logger.Info("url job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source", req.SourceURL))
	return job, nil
}

// CreateJobFromUpload enqueues a dubbing job for an uploaded video file. The
// payload is stored under the upload directory before the job becomes
// claimable.
func (d *Daemon) CreateJobFromUpload(ctx context.Context, filename string, payload io.Reader, req queue.Request) (*queue.Job, error) {
	if payload == nil {
		return nil, services.Wrap(services.ErrValidation, "daemon", "create job", "file is required", nil)
	}

	job, err := d.store.NewJob(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	if err := d.prepareWorkDir(ctx, job); err != nil {
		return job, err
	}

	if err := os.MkdirAll(d.cfg.Paths.UploadDir, 0o755); err != nil {
		return job, fmt.Errorf("create upload dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".mp4"
	}
	videoPath := filepath.Join(d.cfg.Paths.UploadDir, job.ID+ext)
	dest, err := os.Create(videoPath)
	if err != nil {
		return job, fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dest, payload); err != nil {
		dest.Close()
		return job, fmt.Errorf("save upload: %w", err)
	}
	if err := dest.Close(); err != nil {
		return job, fmt.Errorf("save upload: %w", err)
	}

	job.SourcePath = videoPath
	job.VideoPath = videoPath
	if job.Title == "" {
		job.Title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	d.markQueued(job)
	if err := d.store.Update(ctx, job); err != nil {
		return job, fmt.Errorf("update job: %w", err)
	}

	d.logger.Info("upload job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("file", videoPath))
	return job, nil
}

func (d *Daemon) prepareWorkDir(ctx context.Context, job *queue.Job) error {
	workDir := filepath.Join(d.cfg.Paths.OutputDir, job.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	job.WorkDir = workDir
	return d.store.Update(ctx, job)
}

// markQueued returns a job to the pending pool after creation-time work so a
// workflow worker can claim it.
func (d *Daemon) markQueued(job *queue.Job) {
	job.Status = queue.StatusPending
	job.Step = 0
	job.StepName = "Queued"
	job.Progress = 0
	job.Message = "Queued for processing"
	job.ErrorMessage = ""
}
