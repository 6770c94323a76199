package scheduler

import (
	"context"
	"sync"

	"github.com/desertthunder/autoshorts/internal/models"
)

// Memory is an in-memory [Trigger] that counts calls. EnsureErr and RemoveErr, when set, are returned instead.
type Memory struct {
	mu        sync.Mutex
	slots     map[models.Slot]bool
	Ensures   int
	Removes   int
	EnsureErr error
	RemoveErr error
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[models.Slot]bool)}
}

func (m *Memory) Ensure(ctx context.Context, slot models.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ensures++
	if m.EnsureErr != nil {
		return m.EnsureErr
	}
	m.slots[slot] = true
	return nil
}

func (m *Memory) Remove(ctx context.Context, slot models.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removes++
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	delete(m.slots, slot)
	return nil
}

func (m *Memory) Exists(ctx context.Context, slot models.Slot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[slot], nil
}

func (m *Memory) List(ctx context.Context) ([]models.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots := make([]models.Slot, 0, len(m.slots))
	for s := range m.slots {
		slots = append(slots, s)
	}
	return sortSlots(slots), nil
}
