package daemon_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dubmaster/internal/config"
	"dubmaster/internal/daemon"
	"dubmaster/internal/fetch"
	"dubmaster/internal/queue"
	"dubmaster/internal/testsupport"
	"dubmaster/internal/workflow"
)

type stubFetcher struct {
	info        *fetch.VideoInfo
	infoErr     error
	downloadErr error
}

func (f *stubFetcher) Info(ctx context.Context, url string) (*fetch.VideoInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if f.info != nil {
		return f.info, nil
	}
	return &fetch.VideoInfo{Title: "Stub Video", Duration: 125}, nil
}

func (f *stubFetcher) Download(ctx context.Context, url, workDir string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	path := filepath.Join(workDir, "original_video.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type idleRunner struct{}

func (idleRunner) Run(ctx context.Context, job *queue.Job) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestDaemon(t *testing.T, fetcher daemon.Fetcher) (*daemon.Daemon, *config.Config, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 3600
	cfg.Workflow.MaxConcurrentJobs = 1
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, idleRunner{}, nil)
	d, err := daemon.New(cfg, store, mgr, fetcher, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, cfg, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _, _ := newTestDaemon(t, &stubFetcher{})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if d.APIAddr() == "" {
		t.Fatal("expected bound api address")
	}
	status := d.Status(context.Background())
	if !status.Running {
		t.Fatal("expected running status")
	}
	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("expected stopped status")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	first, cfg, _ := newTestDaemon(t, &stubFetcher{})
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer first.Stop()

	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, idleRunner{}, nil)
	second, err := daemon.New(cfg, store, mgr, &stubFetcher{}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance must fail to start")
	}
}

func TestCreateJobFromURL(t *testing.T) {
	d, cfg, store := newTestDaemon(t, &stubFetcher{})

	job, err := d.CreateJobFromURL(context.Background(), queue.Request{
		SourceURL:  "https://example.com/watch?v=abc",
		SourceLang: "en",
		TargetLang: "hi",
		DubVolume:  0.75,
	})
	if err != nil {
		t.Fatalf("CreateJobFromURL failed: %v", err)
	}
	if job.WorkDir != filepath.Join(cfg.Paths.OutputDir, job.ID) {
		t.Fatalf("unexpected work dir: %s", job.WorkDir)
	}
	if job.VideoPath == "" {
		t.Fatal("expected video path to be recorded")
	}
	if _, err := os.Stat(job.VideoPath); err != nil {
		t.Fatalf("downloaded video missing: %v", err)
	}

	persisted, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if persisted.Status != queue.StatusPending {
		t.Fatalf("expected pending job after download, got %s", persisted.Status)
	}
	if persisted.StepName != "Queued" {
		t.Fatalf("unexpected step name: %s", persisted.StepName)
	}
}

func TestCreateJobFromURLDownloadFailure(t *testing.T) {
	d, _, store := newTestDaemon(t, &stubFetcher{downloadErr: errors.New("no such video")})

	job, err := d.CreateJobFromURL(context.Background(), queue.Request{
		SourceURL:  "https://example.com/watch?v=gone",
		SourceLang: "en",
		TargetLang: "hi",
		DubVolume:  0.75,
	})
	if err == nil {
		t.Fatal("expected download error")
	}
	if job == nil {
		t.Fatal("expected failed job to be recorded")
	}

	persisted, getErr := store.GetByID(context.Background(), job.ID)
	if getErr != nil {
		t.Fatalf("GetByID failed: %v", getErr)
	}
	if persisted.Status != queue.StatusFailed {
		t.Fatalf("expected failed job, got %s", persisted.Status)
	}
	if !strings.HasPrefix(persisted.ErrorMessage, "DOWNLOAD_FAILED") {
		t.Fatalf("unexpected error code: %s", persisted.ErrorMessage)
	}
	if !strings.Contains(persisted.ErrorMessage, "no such video") {
		t.Fatalf("fetcher detail missing from error: %s", persisted.ErrorMessage)
	}
	if persisted.Message != "Failed to download video" {
		t.Fatalf("unexpected message: %q", persisted.Message)
	}
	if persisted.Step != 0 {
		t.Fatalf("download failure must keep step 0, got %d", persisted.Step)
	}
}

// blockingFetcher parks Download until released so tests can observe a job
// mid-creation.
type blockingFetcher struct {
	stubFetcher
	started chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) Download(ctx context.Context, url, workDir string) (string, error) {
	close(f.started)
	select {
	case <-f.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return f.stubFetcher.Download(ctx, url, workDir)
}

func TestJobNotClaimableDuringCreation(t *testing.T) {
	fetcher := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	d, _, store := newTestDaemon(t, fetcher)

	done := make(chan error, 1)
	go func() {
		_, err := d.CreateJobFromURL(context.Background(), queue.Request{
			SourceURL:  "https://example.com/watch?v=abc",
			SourceLang: "en",
			TargetLang: "hi",
			DubVolume:  0.75,
		})
		done <- err
	}()

	<-fetcher.started
	claimed, err := store.ClaimNextPending(context.Background())
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("half-built job was claimable: %#v", claimed)
	}

	close(fetcher.release)
	if err := <-done; err != nil {
		t.Fatalf("CreateJobFromURL failed: %v", err)
	}
	claimed, err = store.ClaimNextPending(context.Background())
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if claimed == nil || claimed.VideoPath == "" {
		t.Fatalf("expected fully staged job to be claimable, got %#v", claimed)
	}
}

func TestCreateJobFromUpload(t *testing.T) {
	d, cfg, store := newTestDaemon(t, &stubFetcher{})

	payload := []byte("uploaded video bytes")
	job, err := d.CreateJobFromUpload(context.Background(), "clip.mp4",
		bytes.NewReader(payload), queue.Request{
			SourceLang: "en",
			TargetLang: "es",
			DubVolume:  1.0,
		})
	if err != nil {
		t.Fatalf("CreateJobFromUpload failed: %v", err)
	}
	if filepath.Dir(job.VideoPath) != cfg.Paths.UploadDir {
		t.Fatalf("upload not stored in upload dir: %s", job.VideoPath)
	}
	saved, err := os.ReadFile(job.VideoPath)
	if err != nil {
		t.Fatalf("read saved upload: %v", err)
	}
	if string(saved) != string(payload) {
		t.Fatal("saved payload does not match upload")
	}
	if job.Title != "clip" {
		t.Fatalf("expected title from filename, got %q", job.Title)
	}

	persisted, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if persisted.Status != queue.StatusPending {
		t.Fatalf("expected pending job, got %s", persisted.Status)
	}
}
