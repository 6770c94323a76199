package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/scheduler"
	"github.com/desertthunder/autoshorts/internal/shared"
)

type slotView struct {
	Slot  models.Slot `json:"slot"`
	Key   string      `json:"key"`
	Users []int64     `json:"users"`
}

// ListSchedule prints every entry grouped by slot. Entries arrive in week order.
func (r *Runner) ListSchedule(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	entries, err := store.Schedules.List()
	if err != nil {
		return err
	}

	var views []slotView
	for _, e := range entries {
		if n := len(views); n > 0 && views[n-1].Slot == e.Slot {
			views[n-1].Users = append(views[n-1].Users, e.UserID)
			continue
		}
		views = append(views, slotView{Slot: e.Slot, Key: e.Slot.Key(), Users: []int64{e.UserID}})
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}
	if len(views) == 0 {
		return r.writePlain("Nothing scheduled.\n")
	}

	r.writePlainHeader("Schedule")
	for _, v := range views {
		r.writePlain("%-14s users %v\n", v.Slot.String(), v.Users)
	}
	return nil
}

// AddSchedule adds a slot to a user's schedule, creating the slot's trigger when it is the first entry.
func (r *Runner) AddSchedule(ctx context.Context, cmd *cli.Command) error {
	coord, err := r.coordinator(ctx, false)
	if err != nil {
		return err
	}

	result, err := coord.AddEntry(ctx, cmd.Int64("user"), cmd.String("day"), int(cmd.Int("hour")))
	if err != nil {
		return err
	}
	r.reportEntry("scheduled", result)
	return nil
}

// RemoveSchedule removes a slot from a user's schedule, deleting the trigger when the slot empties.
func (r *Runner) RemoveSchedule(ctx context.Context, cmd *cli.Command) error {
	coord, err := r.coordinator(ctx, false)
	if err != nil {
		return err
	}

	result, err := coord.RemoveEntry(ctx, cmd.Int64("user"), cmd.String("day"), int(cmd.Int("hour")))
	if err != nil {
		return err
	}
	r.reportEntry("unscheduled", result)
	return nil
}

// DueSchedule prints the users due in the current slot, or the slot containing --at.
func (r *Runner) DueSchedule(ctx context.Context, cmd *cli.Command) error {
	now := r.now()
	if at := cmd.String("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("%w: --at must be RFC 3339: %v", shared.ErrInvalidFlag, err)
		}
		now = t
	}

	coord, err := r.coordinator(ctx, false)
	if err != nil {
		return err
	}
	due, err := coord.DueNow(ctx, now)
	if err != nil {
		return err
	}

	slot := models.SlotAt(now)
	if cmd.Bool("json") {
		return r.writeJSON(slotView{Slot: slot, Key: slot.Key(), Users: due}, cmd.Bool("pretty"))
	}
	return r.writePlain("%s: %d due %v\n", slot.String(), len(due), due)
}

// ReconcileSchedule makes triggers match stored schedule occupancy.
func (r *Runner) ReconcileSchedule(ctx context.Context, cmd *cli.Command) error {
	coord, err := r.coordinator(ctx, false)
	if err != nil {
		return err
	}

	report, err := coord.Reconcile(ctx)
	if report == nil {
		return err
	}
	if err != nil {
		r.logger.Error("some triggers could not be repaired", "error", err)
	}

	if cmd.Bool("json") {
		if werr := r.writeJSON(report, cmd.Bool("pretty")); werr != nil {
			return werr
		}
		return err
	}
	r.writePlain("%d slots occupied, %d triggers created, %d removed\n",
		len(report.Desired), len(report.Created), len(report.Removed))
	return err
}

// Cron is the entry point for a fired OS trigger: repair trigger drift, then run every user due now.
//
// A reconcile failure is logged and never prevents the tick.
func (r *Runner) Cron(ctx context.Context, cmd *cli.Command) error {
	coord, err := r.coordinator(ctx, true)
	if err != nil {
		return err
	}

	if _, err := coord.Reconcile(ctx); err != nil {
		r.logger.Warn("reconcile failed before tick", "error", err)
	}

	report, err := coord.RunDue(ctx, r.now())
	if err != nil {
		if errors.Is(err, scheduler.ErrTickInProgress) {
			r.logger.Warn("previous tick still running, skipping")
			return nil
		}
		return err
	}

	r.logger.Info("cron tick complete",
		"slot", report.Slot.Key(),
		"users", len(report.Users),
		"failed", report.Failed(),
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Second),
	)
	return nil
}

func (r *Runner) reportEntry(action string, result *scheduler.EntryResult) {
	logger := shared.WithLogger(r.logger, "user", result.UserID, "slot", result.Slot.Key())
	if result.TriggerErr != nil {
		logger.Warn(action+", trigger not updated; run 'autoshorts schedule reconcile'", "error", result.TriggerErr)
	}
	r.writePlain("%s %s (%d in slot, trigger %s)\n", action, result.Slot.String(), result.Occupancy, result.Trigger)
}
