package scheduler

import (
	"context"
	"errors"

	"github.com/desertthunder/autoshorts/internal/models"
)

// ErrDeferred is returned by [Deferred] for every trigger operation.
var ErrDeferred = errors.New("in-process triggers are managed by the serve daemon")

// Deferred stands in for the in-process trigger in one-shot commands.
//
// An [InProcess] trigger only lives as long as `autoshorts serve`, so commands
// that exit right away change the schedule and leave trigger changes to the
// daemon's next reconcile.
type Deferred struct{}

func (Deferred) Ensure(ctx context.Context, slot models.Slot) error { return ErrDeferred }
func (Deferred) Remove(ctx context.Context, slot models.Slot) error { return ErrDeferred }

func (Deferred) Exists(ctx context.Context, slot models.Slot) (bool, error) {
	return false, ErrDeferred
}

func (Deferred) List(ctx context.Context) ([]models.Slot, error) { return nil, ErrDeferred }
