package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// BoundaryKind is the kind of a scheduler callback.
type BoundaryKind string

const (
	BoundaryStart     BoundaryKind = "start"
	BoundaryEnd       BoundaryKind = "end"
	BoundaryThreshold BoundaryKind = "threshold"
)

// ParseBoundaryKind validates a kind from the command line.
func ParseBoundaryKind(s string) (BoundaryKind, error) {
	switch k := BoundaryKind(s); k {
	case BoundaryStart, BoundaryEnd, BoundaryThreshold:
		return k, nil
	}
	return "", fmt.Errorf("unknown boundary kind %q", s)
}

// BoundaryEvent is one callback from the scheduling backend.
type BoundaryEvent struct {
	Kind     BoundaryKind
	Activity string
	Event    string // threshold event name
}

// ActionKind is a shield button.
type ActionKind string

const (
	ActionPrimary   ActionKind = "primary"
	ActionSecondary ActionKind = "secondary"
)

// BoundaryHandler handles window boundaries.
type BoundaryHandler interface {
	OnIntervalStart(ctx context.Context, activity string) Outcome
	OnIntervalEnd(ctx context.Context, activity string) Outcome
	OnThresholdReached(ctx context.Context, event, activity string) Outcome
}

// ActionHandler handles shield buttons.
type ActionHandler interface {
	OnPrimaryAction(ctx context.Context, target domain.Target) ActionResponse
	OnSecondaryAction(ctx context.Context, target domain.Target) ActionResponse
}

// Reactor dispatches external callbacks to a fresh handler per call.
// Handlers share no memory between calls; state is re-read from the store.
type Reactor struct {
	newBoundary func() BoundaryHandler
	newAction   func() ActionHandler
	logger      *zap.Logger
}

// NewReactor creates a reactor from handler factories.
func NewReactor(newBoundary func() BoundaryHandler, newAction func() ActionHandler, logger *zap.Logger) *Reactor {
	return &Reactor{newBoundary: newBoundary, newAction: newAction, logger: logger}
}

// Dispatch routes one boundary event.
func (r *Reactor) Dispatch(ctx context.Context, ev BoundaryEvent) Outcome {
	h := r.newBoundary()
	r.logger.Debug("dispatching boundary",
		zap.String("kind", string(ev.Kind)),
		zap.String("activity", ev.Activity))

	switch ev.Kind {
	case BoundaryStart:
		return h.OnIntervalStart(ctx, ev.Activity)
	case BoundaryEnd:
		return h.OnIntervalEnd(ctx, ev.Activity)
	case BoundaryThreshold:
		return h.OnThresholdReached(ctx, ev.Event, ev.Activity)
	}
	r.logger.Warn("unknown boundary kind", zap.String("kind", string(ev.Kind)))
	return Outcome{Activity: ev.Activity}
}

// DispatchAction routes one button press.
func (r *Reactor) DispatchAction(ctx context.Context, kind ActionKind, target domain.Target) ActionResponse {
	h := r.newAction()
	switch kind {
	case ActionPrimary:
		return h.OnPrimaryAction(ctx, target)
	case ActionSecondary:
		return h.OnSecondaryAction(ctx, target)
	}
	r.logger.Warn("unknown action kind", zap.String("kind", string(kind)))
	return ResponseClose
}
