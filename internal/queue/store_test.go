package queue_test

import (
	"context"
	"fmt"
	"testing"

	"dubmaster/internal/queue"
	"dubmaster/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewJob(ctx, queue.Request{
		SourceURL:  "https://example.com/watch?v=abc",
		SourceLang: "en",
		TargetLang: "hi",
		DubVolume:  1.0,
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if len(job.ID) != 8 {
		t.Fatalf("expected 8-character job id, got %q", job.ID)
	}
	if job.Status != queue.StatusProcessing {
		t.Fatalf("expected processing status during creation, got %s", job.Status)
	}
	if job.Step != 0 || job.Progress != 0 {
		t.Fatalf("expected fresh job at step 0 progress 0, got %d/%d", job.Step, job.Progress)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourceURL != "https://example.com/watch?v=abc" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
	if fetched.TargetLang != "hi" {
		t.Fatalf("expected target language preserved, got %q", fetched.TargetLang)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetByID(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for unknown id, got %#v", job)
	}
}

func TestUpdatePersistsLifecycleFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, queue.Request{SourcePath: "/tmp/input.mp4"})

	job.SetStep(2, "Transcribing Speech", 20, "Transcribing speech")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != queue.StatusProcessing {
		t.Fatalf("expected processing status, got %s", updated.Status)
	}
	if updated.Step != 2 || updated.StepName != "Transcribing Speech" || updated.Progress != 20 {
		t.Fatalf("unexpected step state: %d %q %d", updated.Step, updated.StepName, updated.Progress)
	}

	job.SetCompleted("/tmp/out/dubbed_video.mp4", "Dubbing complete")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	completed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if completed.Status != queue.StatusCompleted || !completed.DownloadReady {
		t.Fatalf("expected downloadable completed job, got %#v", completed)
	}
	if completed.Step != queue.TotalSteps || completed.Progress != 100 {
		t.Fatalf("expected step %d at 100%%, got %d/%d", queue.TotalSteps, completed.Step, completed.Progress)
	}
	if completed.FinalFile != "/tmp/out/dubbed_video.mp4" {
		t.Fatalf("unexpected final file: %q", completed.FinalFile)
	}
}

func TestSetFailedResetsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, queue.Request{SourcePath: "/tmp/input.mp4"})
	job.SetStep(1, "Extracting Audio", 10, "Extracting audio")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	job.SetFailed(1, "Extracting Audio", "Audio extraction failed", "EXTRACTION_FAILED")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	failed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.Status != queue.StatusFailed {
		t.Fatalf("expected failed status, got %s", failed.Status)
	}
	if failed.Progress != 0 {
		t.Fatalf("expected progress reset to 0, got %d", failed.Progress)
	}
	if failed.Step != 1 || failed.StepName != "Extracting Audio" {
		t.Fatalf("expected failure pinned to stage 1, got %d %q", failed.Step, failed.StepName)
	}
	if failed.ErrorMessage != "EXTRACTION_FAILED" {
		t.Fatalf("unexpected error message: %q", failed.ErrorMessage)
	}
	if failed.DownloadReady {
		t.Fatal("failed job must not be downloadable")
	}
}

func TestNewJobNotClaimableUntilQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewJob(ctx, queue.Request{SourceURL: "https://example.com/v", SourceLang: "en", TargetLang: "hi", DubVolume: 1.0})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	claimed, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("job claimable while its input is still being staged: %#v", claimed)
	}

	job.Status = queue.StatusPending
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	claimed, err = store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("expected queued job to be claimed, got %#v", claimed)
	}
}

func TestClaimNextPendingOrdersByCreation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewJob(t, store, queue.Request{SourcePath: "/tmp/a.mp4"})
	second := testsupport.NewJob(t, store, queue.Request{SourcePath: "/tmp/b.mp4"})

	claimed, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest job %s claimed, got %#v", first.ID, claimed)
	}
	if claimed.Status != queue.StatusProcessing {
		t.Fatalf("claimed job should be processing, got %s", claimed.Status)
	}

	next, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected second job %s claimed, got %#v", second.ID, next)
	}

	empty, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected empty queue, got %#v", empty)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		job := testsupport.NewJob(t, store, queue.Request{SourcePath: fmt.Sprintf("/tmp/%d.mp4", i)})
		job.SetStep(3, "Translating Dialogue", 40, "Translating dialogue")
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, job.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 jobs reset, got %d", count)
	}

	for _, id := range ids {
		job, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job.Status != queue.StatusPending || job.Step != 0 || job.Progress != 0 {
			t.Fatalf("job %s not reset: %#v", id, job)
		}
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	pending := testsupport.NewJob(t, store, queue.Request{SourcePath: "/tmp/a.mp4"})
	done := testsupport.NewJob(t, store, queue.Request{SourcePath: "/tmp/b.mp4"})
	done.SetCompleted("/tmp/out.mp4", "Dubbing complete")
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}

	completed, err := store.List(ctx, queue.StatusCompleted)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != done.ID {
		t.Fatalf("unexpected completed list: %#v", completed)
	}

	pendingJobs, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pendingJobs) != 1 || pendingJobs[0].ID != pending.ID {
		t.Fatalf("unexpected pending list: %#v", pendingJobs)
	}
}

func TestHealthCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, queue.Request{SourcePath: "/tmp/a.mp4"})
	failing := testsupport.NewJob(t, store, queue.Request{SourcePath: "/tmp/b.mp4"})
	failing.SetFailed(4, "Synthesizing Voice", "no segments synthesized", "SYNTHESIS_FAILED")
	if err := store.Update(ctx, failing); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}
