package testsupport

import (
	"context"
	"testing"

	"dubmaster/internal/config"
	"dubmaster/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a claimable pending job for tests using the provided
// store. Freshly inserted jobs start in processing state until their
// input is staged, so the helper flips the job to pending the way the
// daemon does after a successful download or upload.
func NewJob(t testing.TB, store *queue.Store, req queue.Request) *queue.Job {
	t.Helper()

	if req.SourceLang == "" {
		req.SourceLang = "en"
	}
	if req.TargetLang == "" {
		req.TargetLang = "hi"
	}
	if req.DubVolume == 0 {
		req.DubVolume = 1.0
	}
	job, err := store.NewJob(context.Background(), req)
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	job.Status = queue.StatusPending
	job.StepName = "Queued"
	job.Message = "Queued for processing"
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("store.Update: %v", err)
	}
	return job
}
