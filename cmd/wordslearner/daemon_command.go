package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wordslearner/internal/daemon"
	"wordslearner/internal/lesson"
	"wordslearner/internal/logging"
	"wordslearner/internal/store"
	"wordslearner/internal/storyboard"
	"wordslearner/internal/taskqueue"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the background task queue and HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	p, err := ctx.buildPorts(signalCtx, cfg, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("build providers: %w", err)
	}
	defer p.Close()

	queue := taskqueue.NewManager(cfg, st, p.text, logger)
	planner := storyboard.NewPlanner(p.text, cfg.Lesson.PlannerAttempts, logger)
	generator := lesson.NewGenerator(st, planner, p.images, p.audio, p.assets, lesson.PresetsFromConfig(cfg), logger)

	d, err := daemon.New(cfg, st, logger, queue, generator, p.assets)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	logger.Info("wordslearner daemon listening", logging.String("api", d.Addr()))

	<-signalCtx.Done()
	logger.Info("wordslearner daemon shutting down")
	return nil
}
