package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/scheduler"
	"github.com/desertthunder/autoshorts/internal/server"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// Serve runs the scheduler in-process instead of through OS triggers, with /healthz and /metrics.
//
// Schedules are re-read every --reconcile-every so changes made by other commands take effect
// without a restart.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	trigger := scheduler.NewInProcess(r.logger)
	r.trigger = trigger

	coord, err := r.coordinator(ctx, true)
	if err != nil {
		return err
	}

	trigger.OnFire(func(now time.Time) {
		report, err := coord.RunDue(ctx, now)
		switch {
		case errors.Is(err, scheduler.ErrTickInProgress):
			r.logger.Warn("previous tick still running, skipping", "slot", models.SlotAt(now).Key())
		case err != nil:
			r.logger.Error("tick failed", "error", err)
		default:
			r.logger.Info("tick complete", "slot", report.Slot.Key(), "users", len(report.Users), "failed", report.Failed())
		}
	})

	if _, err := coord.Reconcile(ctx); err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}
	trigger.Start()
	defer func() { <-trigger.Stop().Done() }()

	go r.reconcileLoop(ctx, coord, cmd.Duration("reconcile-every"))

	store, err := r.openStore()
	if err != nil {
		return err
	}
	health := server.NewHealthHandler(map[string]server.Check{
		"database": func(ctx context.Context) error { return store.DB.PingContext(ctx) },
		"scheduler": func(ctx context.Context) error {
			_, err := trigger.List(ctx)
			return err
		},
	})

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	srv := server.New(addr, server.NewDaemonRouter(r.logger, health))

	r.logger.Info("scheduler running", "addr", addr, "post", r.config.Pipeline.Post)
	return server.Serve(ctx, srv, r.logger)
}

func (r *Runner) reconcileLoop(ctx context.Context, coord *scheduler.Coordinator, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger := shared.WithLogger(r.logger, "component", "reconcile")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := coord.Reconcile(ctx); err != nil {
				logger.Error("reconcile failed", "error", err)
			}
		}
	}
}
