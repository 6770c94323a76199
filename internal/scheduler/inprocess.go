package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// InProcess keeps slots as robfig/cron entries inside a long-running process.
//
// A firing that overlaps a still-running one is skipped.
type InProcess struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[models.Slot]cron.EntryID
	fire    func(now time.Time)
	logger  *log.Logger
}

func NewInProcess(logger *log.Logger) *InProcess {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	cronLogger := cron.PrintfLogger(logger.StandardLog())
	return &InProcess{
		cron:    cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		entries: make(map[models.Slot]cron.EntryID),
		logger:  logger,
	}
}

// OnFire sets the function every entry calls. Set it before [InProcess.Start].
func (p *InProcess) OnFire(fn func(now time.Time)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fire = fn
}

func (p *InProcess) Start() { p.cron.Start() }

// Stop halts scheduling and returns a context done once running jobs finish.
func (p *InProcess) Stop() context.Context { return p.cron.Stop() }

// Spec is the five-field cron expression for slot.
func Spec(slot models.Slot) string {
	return fmt.Sprintf("0 %d * * %d", slot.Hour, int(slot.Day))
}

func (p *InProcess) Ensure(ctx context.Context, slot models.Slot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[slot]; ok {
		return nil
	}
	id, err := p.cron.AddFunc(Spec(slot), func() { p.run(slot) })
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", slot, err)
	}
	p.entries[slot] = id
	p.logger.Debug("in-process trigger added", "slot", slot.Key())
	return nil
}

func (p *InProcess) run(slot models.Slot) {
	p.mu.Lock()
	fire := p.fire
	p.mu.Unlock()

	if fire == nil {
		p.logger.Warn("trigger fired with no handler", "slot", slot.Key())
		return
	}
	fire(time.Now())
}

func (p *InProcess) Remove(ctx context.Context, slot models.Slot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.entries[slot]; ok {
		p.cron.Remove(id)
		delete(p.entries, slot)
	}
	return nil
}

func (p *InProcess) Exists(ctx context.Context, slot models.Slot) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[slot]
	return ok, nil
}

func (p *InProcess) List(ctx context.Context) ([]models.Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slots := make([]models.Slot, 0, len(p.entries))
	for slot := range p.entries {
		slots = append(slots, slot)
	}
	return sortSlots(slots), nil
}

// Next returns when slot fires next, or the zero time when it has no entry.
func (p *InProcess) Next(slot models.Slot) time.Time {
	p.mu.Lock()
	id, ok := p.entries[slot]
	p.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return p.cron.Entry(id).Next
}
