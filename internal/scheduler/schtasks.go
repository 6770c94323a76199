package scheduler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/autoshorts/internal/models"
)

// SchTasks manages Windows Task Scheduler tasks named by slot key.
type SchTasks struct {
	command string
	run     CommandRunner
}

func NewSchTasks(command string, run CommandRunner) *SchTasks {
	if run == nil {
		run = ExecRunner
	}
	return &SchTasks{command: command, run: run}
}

// CreateArgs are the schtasks arguments that register slot.
func (s *SchTasks) CreateArgs(slot models.Slot) []string {
	return []string{
		"/Create",
		"/SC", "WEEKLY",
		"/D", strings.ToUpper(slot.Day.String()[:3]),
		"/TN", slot.Key(),
		"/TR", s.command,
		"/ST", fmt.Sprintf("%02d:00", slot.Hour),
		"/F",
	}
}

// Ensure creates or overwrites the task for slot.
func (s *SchTasks) Ensure(ctx context.Context, slot models.Slot) error {
	if out, err := s.run(ctx, "", "schtasks", s.CreateArgs(slot)...); err != nil {
		return fmt.Errorf("schtasks /Create failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *SchTasks) Remove(ctx context.Context, slot models.Slot) error {
	exists, err := s.Exists(ctx, slot)
	if err != nil || !exists {
		return err
	}
	if out, err := s.run(ctx, "", "schtasks", "/Delete", "/TN", slot.Key(), "/F"); err != nil {
		return fmt.Errorf("schtasks /Delete failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *SchTasks) Exists(ctx context.Context, slot models.Slot) (bool, error) {
	slots, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range slots {
		if existing == slot {
			return true, nil
		}
	}
	return false, nil
}

// List parses the CSV task listing and keeps tasks named with the slot key prefix.
func (s *SchTasks) List(ctx context.Context) ([]models.Slot, error) {
	out, err := s.run(ctx, "", "schtasks", "/Query", "/FO", "CSV", "/NH")
	if err != nil {
		return nil, fmt.Errorf("schtasks /Query failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	r := csv.NewReader(strings.NewReader(string(out)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var slots []models.Slot
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse schtasks output: %w", err)
		}
		if len(record) == 0 || !strings.Contains(record[0], models.SlotKeyPrefix) {
			continue
		}
		if slot, err := models.ParseSlotKey(record[0]); err == nil {
			slots = append(slots, slot)
		}
	}
	return sortSlots(slots), nil
}
