package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dubmaster/internal/daemon"
	"dubmaster/internal/fetch"
	"dubmaster/internal/logging"
	"dubmaster/internal/media"
	"dubmaster/internal/pipeline"
	"dubmaster/internal/queue"
	"dubmaster/internal/transcribe"
	"dubmaster/internal/translate"
	"dubmaster/internal/tts"
	"dubmaster/internal/workflow"
)

// runDaemon wires the full service graph and blocks until SIGINT/SIGTERM.
func runDaemon(cmd *cobra.Command, cmdCtx *commandContext) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}

	tool := media.NewTool(cfg.FFmpeg, logger)
	transcriber := transcribe.NewService(cfg.Whisper, logger)
	translator := translate.NewClient(cfg.Translator)
	fish := tts.NewFishClient(cfg.FishAudio)
	engine := tts.NewEngine(cfg.TTS, tool, logger)
	synthesizer := pipeline.NewVoiceSynthesizer(cfg, engine, fish, tool, logger)

	orchestrator := pipeline.NewOrchestrator(cfg, store, pipeline.Deps{
		Media:       tool,
		Transcriber: transcriber,
		Translator:  translator,
		Synthesizer: synthesizer,
	}, logger)

	manager := workflow.NewManager(cfg, store, orchestrator, logger)
	fetcher := fetch.NewClient(cfg.Fetch, logger)

	d, err := daemon.New(cfg, store, manager, fetcher, logger)
	if err != nil {
		store.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		_ = d.Close()
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "dubmasterd listening on %s\n", d.APIAddr())

	<-ctx.Done()
	if err := d.Close(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
