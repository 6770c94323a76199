package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/pipeline"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// ErrTickInProgress is returned when a tick starts while another is running in the same process.
var ErrTickInProgress = fmt.Errorf("%w: a scheduler tick is already running", shared.ErrConflict)

// ScheduleStore is the schedule persistence the coordinator needs. [repositories.ScheduleRepository] satisfies it.
type ScheduleStore interface {
	Add(entry *models.ScheduleEntry) error
	Remove(userID int64, slot models.Slot) error
	ListByUser(userID int64) ([]*models.ScheduleEntry, error)
	UsersInSlot(slot models.Slot) ([]int64, error)
	Occupancy(slot models.Slot) (int, error)
	OccupiedSlots() ([]models.Slot, error)
}

// UserStore deletes users. [repositories.UserRepository] satisfies it.
type UserStore interface {
	Delete(id int64) error
}

// Generator runs the pipeline for one user. [pipeline.Pipeline] satisfies it.
type Generator interface {
	Generate(ctx context.Context, userID int64, opts pipeline.Options) (*pipeline.Run, error)
}

// Config tunes a [Coordinator].
type Config struct {
	Workers int  // due users run in parallel, at most this many at once
	Post    bool // publish finished videos
}

// Coordinator keeps exactly one trigger per occupied slot and runs due users when a trigger fires.
//
// Trigger counts follow slot occupancy: the first entry in a slot creates its
// trigger and the last one removed deletes it. Changes to one slot are
// serialised within a coordinator. Across processes every change re-checks the
// trigger against the stored occupancy, so a racing writer cannot leave an
// occupied slot without a trigger.
type Coordinator struct {
	cfg       Config
	schedules ScheduleStore
	users     UserStore
	trigger   Trigger
	gen       Generator
	logger    *log.Logger
	tick      sync.Mutex

	slotsMu sync.Mutex
	slots   map[models.Slot]*sync.Mutex
}

// New creates a coordinator. gen may be nil when the caller never runs ticks.
func New(cfg Config, schedules ScheduleStore, users UserStore, trigger Trigger, gen Generator, logger *log.Logger) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Coordinator{
		cfg:       cfg,
		schedules: schedules,
		users:     users,
		trigger:   trigger,
		gen:       gen,
		logger:    logger,
		slots:     make(map[models.Slot]*sync.Mutex),
	}
}

// lockSlot serialises schedule changes to slot and returns the unlock func.
func (c *Coordinator) lockSlot(slot models.Slot) func() {
	c.slotsMu.Lock()
	mu, ok := c.slots[slot]
	if !ok {
		mu = &sync.Mutex{}
		c.slots[slot] = mu
	}
	c.slotsMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// TriggerOutcome describes what happened to a slot's trigger.
type TriggerOutcome string

const (
	TriggerUnchanged TriggerOutcome = "unchanged"       // slot still shared, nothing to do
	TriggerCreated   TriggerOutcome = "created"         // first entry in the slot
	TriggerPresent   TriggerOutcome = "already_present" // first entry, trigger already existed
	TriggerRemoved   TriggerOutcome = "removed"         // last entry left the slot
	TriggerAbsent    TriggerOutcome = "already_absent"  // last entry left, no trigger existed
	TriggerDeferred  TriggerOutcome = "deferred"        // left to the serve daemon's next reconcile
	TriggerFailed    TriggerOutcome = "failed"
)

// EntryResult reports the data and trigger outcome of one schedule change separately.
//
// A non-nil TriggerErr never undoes the data change; [Coordinator.Reconcile] repairs it.
type EntryResult struct {
	UserID     int64          `json:"user_id"`
	Slot       models.Slot    `json:"slot"`
	Occupancy  int            `json:"occupancy"`
	Trigger    TriggerOutcome `json:"trigger"`
	TriggerErr error          `json:"-"`
}

// DueNow returns the users with an entry in the slot containing now.
func (c *Coordinator) DueNow(ctx context.Context, now time.Time) ([]int64, error) {
	return c.schedules.UsersInSlot(models.SlotAt(now))
}

// AddEntry schedules userID at day and hour. A duplicate entry is a conflict with no side effects.
func (c *Coordinator) AddEntry(ctx context.Context, userID int64, day string, hour int) (*EntryResult, error) {
	entry, err := models.NewScheduleEntry(userID, day, hour)
	if err != nil {
		return nil, err
	}

	unlock := c.lockSlot(entry.Slot)
	defer unlock()

	if err := c.schedules.Add(entry); err != nil {
		return nil, err
	}

	result := &EntryResult{UserID: userID, Slot: entry.Slot, Trigger: TriggerUnchanged}
	occupancy, err := c.schedules.Occupancy(entry.Slot)
	if err != nil {
		result.Trigger, result.TriggerErr = TriggerFailed, err
		return result, nil
	}
	result.Occupancy = occupancy

	c.ensure(ctx, result)
	c.logger.Info("schedule entry added", "user", userID, "slot", entry.Slot.Key(), "occupancy", occupancy, "trigger", result.Trigger)
	return result, nil
}

// RemoveEntry deletes the exact entry. Removing the last entry in a slot removes its trigger.
func (c *Coordinator) RemoveEntry(ctx context.Context, userID int64, day string, hour int) (*EntryResult, error) {
	slot, err := models.NewSlot(day, hour)
	if err != nil {
		return nil, err
	}

	unlock := c.lockSlot(slot)
	defer unlock()

	if err := c.schedules.Remove(userID, slot); err != nil {
		return nil, err
	}

	result := &EntryResult{UserID: userID, Slot: slot, Trigger: TriggerUnchanged}
	c.releaseSlot(ctx, result)
	c.logger.Info("schedule entry removed", "user", userID, "slot", slot.Key(), "occupancy", result.Occupancy, "trigger", result.Trigger)
	return result, nil
}

// RemoveUser deletes userID with everything it owns and removes triggers for slots left empty.
func (c *Coordinator) RemoveUser(ctx context.Context, userID int64) ([]*EntryResult, error) {
	entries, err := c.schedules.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	// entries are in week order, so every caller locks slots in the same order
	for _, e := range entries {
		unlock := c.lockSlot(e.Slot)
		defer unlock()
	}
	if err := c.users.Delete(userID); err != nil {
		return nil, err
	}

	results := make([]*EntryResult, 0, len(entries))
	for _, e := range entries {
		result := &EntryResult{UserID: userID, Slot: e.Slot, Trigger: TriggerUnchanged}
		c.releaseSlot(ctx, result)
		results = append(results, result)
	}
	c.logger.Info("user removed", "user", userID, "entries", len(entries))
	return results, nil
}

// ensure makes sure an occupied slot has a trigger. Only the first entry
// reports an existing trigger as already present; a missing trigger behind a
// shared slot is recreated.
func (c *Coordinator) ensure(ctx context.Context, result *EntryResult) {
	exists, err := c.trigger.Exists(ctx, result.Slot)
	switch {
	case err != nil:
		c.triggerFailure(result, "failed to create trigger", err)
	case exists:
		if result.Occupancy == 1 {
			result.Trigger = TriggerPresent
		}
	default:
		if err := c.trigger.Ensure(ctx, result.Slot); err != nil {
			c.triggerFailure(result, "failed to create trigger", err)
			return
		}
		if result.Occupancy > 1 {
			c.logger.Warn("occupied slot had no trigger", "slot", result.Slot.Key(), "occupancy", result.Occupancy)
		}
		result.Trigger = TriggerCreated
	}
}

func (c *Coordinator) releaseSlot(ctx context.Context, result *EntryResult) {
	occupancy, err := c.schedules.Occupancy(result.Slot)
	if err != nil {
		result.Trigger, result.TriggerErr = TriggerFailed, err
		return
	}
	result.Occupancy = occupancy
	if occupancy > 0 {
		return
	}

	exists, err := c.trigger.Exists(ctx, result.Slot)
	switch {
	case err != nil:
		c.triggerFailure(result, "failed to remove trigger", err)
		return
	case !exists:
		result.Trigger = TriggerAbsent
		return
	}
	if err := c.trigger.Remove(ctx, result.Slot); err != nil {
		c.triggerFailure(result, "failed to remove trigger", err)
		return
	}
	result.Trigger = TriggerRemoved

	// Another process may have filled the slot between the count and the removal.
	occupancy, err = c.schedules.Occupancy(result.Slot)
	if err != nil || occupancy == 0 {
		return
	}
	result.Occupancy = occupancy
	if err := c.trigger.Ensure(ctx, result.Slot); err != nil {
		c.triggerFailure(result, "failed to restore trigger", err)
		return
	}
	c.logger.Warn("slot refilled during removal, trigger restored", "slot", result.Slot.Key(), "occupancy", occupancy)
	result.Trigger = TriggerUnchanged
}

func (c *Coordinator) triggerFailure(result *EntryResult, msg string, err error) {
	if errors.Is(err, ErrDeferred) {
		result.Trigger = TriggerDeferred
		return
	}
	result.Trigger, result.TriggerErr = TriggerFailed, err
	c.logger.Error(msg, "slot", result.Slot.Key(), "error", err)
}

// ReconcileReport lists the repairs made by [Coordinator.Reconcile].
type ReconcileReport struct {
	Desired []models.Slot `json:"desired"`
	Created []models.Slot `json:"created"`
	Removed []models.Slot `json:"removed"`
}

// Reconcile makes the triggers match stored occupancy: missing triggers are
// created and triggers for empty slots are removed.
//
// Every repair is attempted; the returned error joins the ones that failed.
func (c *Coordinator) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	desired, err := c.schedules.OccupiedSlots()
	if err != nil {
		return nil, err
	}
	existing, err := c.trigger.List(ctx)
	if errors.Is(err, ErrDeferred) {
		return &ReconcileReport{Desired: desired}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}

	want := make(map[models.Slot]bool, len(desired))
	for _, s := range desired {
		want[s] = true
	}
	have := make(map[models.Slot]bool, len(existing))
	for _, s := range existing {
		have[s] = true
	}

	report := &ReconcileReport{Desired: desired}
	var errs []error
	for _, s := range desired {
		if have[s] {
			continue
		}
		if err := c.trigger.Ensure(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("ensure %s: %w", s.Key(), err))
			continue
		}
		report.Created = append(report.Created, s)
	}
	for _, s := range existing {
		if want[s] {
			continue
		}
		if err := c.trigger.Remove(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", s.Key(), err))
			continue
		}
		report.Removed = append(report.Removed, s)
	}

	if len(report.Created)+len(report.Removed) > 0 {
		c.logger.Info("triggers reconciled", "created", len(report.Created), "removed", len(report.Removed))
	}
	return report, errors.Join(errs...)
}

// UserOutcome is one user's result within a tick.
type UserOutcome struct {
	UserID int64         `json:"user_id"`
	Run    *pipeline.Run `json:"run,omitempty"`
	Err    error         `json:"-"`
	Error  string        `json:"error,omitempty"`
}

// TickReport summarises one [Coordinator.RunDue] call.
type TickReport struct {
	Slot       models.Slot   `json:"slot"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Users      []UserOutcome `json:"users"`
}

// Failed counts users whose run returned an error.
func (r *TickReport) Failed() int {
	n := 0
	for _, u := range r.Users {
		if u.Err != nil {
			n++
		}
	}
	return n
}

// RunDue runs the pipeline for every user due at now, at most cfg.Workers at a time.
//
// One user's failure never stops the others. Only one tick runs at a time per coordinator.
func (c *Coordinator) RunDue(ctx context.Context, now time.Time) (*TickReport, error) {
	if c.gen == nil {
		return nil, fmt.Errorf("%w: scheduler has no pipeline", shared.ErrConfig)
	}
	if !c.tick.TryLock() {
		return nil, ErrTickInProgress
	}
	defer c.tick.Unlock()

	slot := models.SlotAt(now)
	report := &TickReport{Slot: slot, StartedAt: time.Now()}

	due, err := c.DueNow(ctx, now)
	if err != nil {
		return nil, err
	}
	c.logger.Info("tick", "slot", slot.Key(), "due", len(due))

	report.Users = make([]UserOutcome, len(due))
	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, userID := range due {
		g.Go(func() error {
			out := UserOutcome{UserID: userID}
			out.Run, out.Err = c.gen.Generate(ctx, userID, pipeline.Options{Post: c.cfg.Post})
			if out.Err != nil {
				out.Error = out.Err.Error()
				c.logger.Error("scheduled run failed", "user", userID, "error", out.Err)
			}
			report.Users[i] = out
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now()
	c.logger.Info("tick finished", "slot", slot.Key(), "users", len(due), "failed", report.Failed())
	return report, nil
}
