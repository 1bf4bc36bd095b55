package usecase

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// Outcome is what a boundary handler did. Handlers never return errors;
// failures surface as diagnostic events.
type Outcome struct {
	Event    string
	Activity string
	Changed  bool
}

// Monitor reacts to window boundaries delivered by the scheduling backend.
// Each call is independent; all state lives in the shared store.
type Monitor struct {
	selections *SelectionStore
	enforcer   *ShieldEnforcer
	reconciler *Reconciler
	registry   *ScheduleRegistry
	activities domain.ActivityCenter
	events     *EventChannel
	auth       AuthGate
	logger     *zap.Logger

	initOnce sync.Once
}

// NewMonitor creates a boundary monitor.
func NewMonitor(
	selections *SelectionStore,
	enforcer *ShieldEnforcer,
	reconciler *Reconciler,
	registry *ScheduleRegistry,
	activities domain.ActivityCenter,
	events *EventChannel,
	auth AuthGate,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		selections: selections,
		enforcer:   enforcer,
		reconciler: reconciler,
		registry:   registry,
		activities: activities,
		events:     events,
		auth:       auth,
		logger:     logger,
	}
}

// OnIntervalStart handles the start of a window.
func (m *Monitor) OnIntervalStart(ctx context.Context, activity string) Outcome {
	return m.guard(ctx, activity, func() (Outcome, error) {
		name := m.registry.DisplayName(ctx, activity)

		if domain.IsOverrideActivity(activity) {
			return m.record(ctx, domain.EventOverrideStarted, activity, false), nil
		}
		if err := m.auth.Require(ctx); err != nil {
			return Outcome{}, err
		}

		if _, ok, err := m.registered(ctx, activity); err != nil {
			return Outcome{}, err
		} else if !ok {
			m.logger.Warn("start for unregistered activity ignored", zap.String("activity", activity))
			return m.record(ctx, domain.EventIntervalStartUnregistered, name, false), nil
		}

		sel, err := m.selections.Load(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if sel.IsEmpty() {
			m.logger.Warn("window started without a selection", zap.String("schedule", name))
			return m.record(ctx, domain.EventIntervalStartNoSelection, name, false), nil
		}

		overridden, err := m.reconciler.OverrideActive(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if overridden {
			return m.record(ctx, domain.EventIntervalStartDeferred, name, false), nil
		}

		changed, err := m.enforcer.Apply(ctx, sel, "monitor:"+activity)
		if err != nil {
			return Outcome{}, err
		}
		return m.record(ctx, domain.EventIntervalStart, name, changed), nil
	})
}

// OnIntervalEnd handles the end of a window.
func (m *Monitor) OnIntervalEnd(ctx context.Context, activity string) Outcome {
	return m.guard(ctx, activity, func() (Outcome, error) {
		if err := m.auth.Require(ctx); err != nil {
			return Outcome{}, err
		}

		if domain.IsOverrideActivity(activity) {
			// A late end from an earlier unlock must not cut a newer one short.
			running, err := m.reconciler.OverrideActive(ctx)
			if err != nil {
				return Outcome{}, err
			}
			if running {
				m.logger.Warn("override end before expiry ignored", zap.String("activity", activity))
				return m.record(ctx, domain.EventOverrideEndEarly, activity, false), nil
			}

			d, err := m.reconciler.Relock(ctx, "monitor:"+activity)
			if err != nil {
				return Outcome{}, err
			}
			if err := m.activities.StopMonitoring(ctx, activity); err != nil {
				return Outcome{}, err
			}
			return m.record(ctx, domain.EventOverrideEnded, activity, d.Changed), nil
		}

		name := m.registry.DisplayName(ctx, activity)
		a, registered, err := m.registered(ctx, activity)
		if err != nil {
			return Outcome{}, err
		}

		if err := m.enforcer.ReleaseManual(ctx, "monitor:"+activity); err != nil {
			return Outcome{}, err
		}
		d, err := m.reconciler.Reconcile(ctx, "monitor:"+activity, activity)
		if err != nil {
			return Outcome{}, err
		}

		out := m.record(ctx, domain.EventIntervalEnd, name, d.Changed)
		if err := m.events.SetFlag(ctx, domain.FlagScheduleEnded, name); err != nil {
			m.logger.Warn("failed to set schedule ended flag", zap.Error(err))
		}

		if registered && (a.OneShot || !a.Repeats) {
			if err := m.activities.StopMonitoring(ctx, activity); err != nil {
				m.logger.Warn("failed to unregister finished activity",
					zap.String("activity", activity),
					zap.Error(err))
			}
			if _, err := m.registry.Retire(ctx, activity); err != nil {
				m.logger.Warn("failed to retire finished window",
					zap.String("activity", activity),
					zap.Error(err))
			}
		}
		return out, nil
	})
}

// OnThresholdReached records a usage threshold event.
func (m *Monitor) OnThresholdReached(ctx context.Context, event, activity string) Outcome {
	return m.guard(ctx, activity, func() (Outcome, error) {
		m.logger.Info("threshold reached",
			zap.String("event", event),
			zap.String("activity", activity))
		return m.record(ctx, domain.EventThresholdReached, activity, false), nil
	})
}

func (m *Monitor) registered(ctx context.Context, activity string) (domain.Activity, bool, error) {
	list, err := m.activities.Activities(ctx)
	if err != nil {
		return domain.Activity{}, false, err
	}
	for _, a := range list {
		if a.Name == activity {
			return a, true, nil
		}
	}
	return domain.Activity{}, false, nil
}

func (m *Monitor) record(ctx context.Context, event, schedule string, changed bool) Outcome {
	if err := m.events.AppendEvent(ctx, event, schedule); err != nil {
		m.logger.Warn("failed to record event",
			zap.String("event", event),
			zap.Error(err))
	}
	return Outcome{Event: event, Activity: schedule, Changed: changed}
}

// guard runs a handler, turning errors and panics into diagnostic events.
func (m *Monitor) guard(ctx context.Context, activity string, fn func() (Outcome, error)) (out Outcome) {
	m.initOnce.Do(func() {
		if err := m.events.RecordMonitorInit(ctx, runtime.GOOS); err != nil {
			m.logger.Warn("failed to record monitor init", zap.Error(err))
		}
	})

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("boundary handler panicked",
				zap.String("activity", activity),
				zap.Any("panic", r))
			out = m.record(ctx, domain.EventHandlerFailure, activity, false)
		}
	}()

	out, err := fn()
	if err == nil {
		return out
	}

	event := domain.EventHandlerFailure
	switch {
	case errors.Is(err, domain.ErrStorageDecode):
		event = domain.EventStorageDecodeFailure
	case errors.Is(err, domain.ErrAuthorizationDenied):
		m.logger.Warn("enforcement not authorized", zap.String("activity", activity))
		return m.record(ctx, domain.EventAuthorizationDenied, activity, false)
	}
	m.logger.Error("boundary handler failed",
		zap.String("activity", activity),
		zap.String("event", event),
		zap.Error(err))
	return m.record(ctx, event, activity, false)
}
