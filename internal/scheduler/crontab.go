package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/autoshorts/internal/models"
)

// CronTab manages the current user's crontab. Each slot is one line tagged with "# <slot key>".
type CronTab struct {
	command string
	run     CommandRunner
}

func NewCronTab(command string, run CommandRunner) *CronTab {
	if run == nil {
		run = ExecRunner
	}
	return &CronTab{command: command, run: run}
}

// Line is the crontab entry for slot.
func (c *CronTab) Line(slot models.Slot) string {
	return fmt.Sprintf("0 %d * * %d %s # %s", slot.Hour, int(slot.Day), c.command, slot.Key())
}

func (c *CronTab) Ensure(ctx context.Context, slot models.Slot) error {
	lines, err := c.read(ctx)
	if err != nil {
		return err
	}
	if findLine(lines, slot) >= 0 {
		return nil
	}
	return c.write(ctx, append(lines, c.Line(slot)))
}

func (c *CronTab) Remove(ctx context.Context, slot models.Slot) error {
	lines, err := c.read(ctx)
	if err != nil {
		return err
	}

	kept := lines[:0:0]
	for _, line := range lines {
		if !hasMarker(line, slot) {
			kept = append(kept, line)
		}
	}
	if len(kept) == len(lines) {
		return nil
	}
	return c.write(ctx, kept)
}

func (c *CronTab) Exists(ctx context.Context, slot models.Slot) (bool, error) {
	lines, err := c.read(ctx)
	if err != nil {
		return false, err
	}
	return findLine(lines, slot) >= 0, nil
}

// List returns the slots of every tagged line. Lines that do not belong to autoshorts are ignored.
func (c *CronTab) List(ctx context.Context) ([]models.Slot, error) {
	lines, err := c.read(ctx)
	if err != nil {
		return nil, err
	}

	var slots []models.Slot
	for _, line := range lines {
		_, marker, ok := strings.Cut(line, "# "+models.SlotKeyPrefix)
		if !ok {
			continue
		}
		if slot, err := models.ParseSlotKey(models.SlotKeyPrefix + strings.TrimSpace(marker)); err == nil {
			slots = append(slots, slot)
		}
	}
	return sortSlots(slots), nil
}

// read returns the crontab lines. A user without a crontab has none.
func (c *CronTab) read(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "", "crontab", "-l")
	if err != nil {
		if strings.Contains(strings.ToLower(string(out)), "no crontab") {
			return nil, nil
		}
		return nil, fmt.Errorf("crontab -l failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (c *CronTab) write(ctx context.Context, lines []string) error {
	content := strings.Join(lines, "\n") + "\n"
	if out, err := c.run(ctx, content, "crontab", "-"); err != nil {
		return fmt.Errorf("crontab - failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// hasMarker matches the key exactly so monday_1 never matches monday_13.
func hasMarker(line string, slot models.Slot) bool {
	return strings.HasSuffix(strings.TrimSpace(line), "# "+slot.Key())
}

func findLine(lines []string, slot models.Slot) int {
	for i, line := range lines {
		if hasMarker(line, slot) {
			return i
		}
	}
	return -1
}
