package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// Override duration bounds.
const (
	MinOverride        = time.Minute
	DefaultMaxOverride = 24 * time.Hour
)

// ErrInvalidOverrideDuration is returned for an unlock outside the allowed bounds.
var ErrInvalidOverrideDuration = errors.New("invalid unlock duration")

// OverrideController runs temporary unlocks and their expiry.
type OverrideController struct {
	store       domain.SharedStore
	activities  domain.ActivityCenter
	enforcer    *ShieldEnforcer
	reconciler  *Reconciler
	registry    *ScheduleRegistry
	events      *EventChannel
	clock       domain.Clock
	maxOverride time.Duration
	logger      *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
	armed time.Time
}

// NewOverrideController creates an override controller.
func NewOverrideController(
	store domain.SharedStore,
	activities domain.ActivityCenter,
	enforcer *ShieldEnforcer,
	reconciler *Reconciler,
	registry *ScheduleRegistry,
	events *EventChannel,
	clock domain.Clock,
	maxOverride time.Duration,
	logger *zap.Logger,
) *OverrideController {
	if maxOverride <= 0 {
		maxOverride = DefaultMaxOverride
	}
	return &OverrideController{
		store:       store,
		activities:  activities,
		enforcer:    enforcer,
		reconciler:  reconciler,
		registry:    registry,
		events:      events,
		clock:       clock,
		maxOverride: maxOverride,
		logger:      logger,
	}
}

// RequestTemporaryUnlock lifts the shield for d, then restores it.
//
// The override record is written before any registration changes so that a
// window start racing with the unlock observes it and defers.
func (c *OverrideController) RequestTemporaryUnlock(ctx context.Context, d time.Duration) (domain.OverrideWindow, error) {
	if d < MinOverride || d > c.maxOverride {
		return domain.OverrideWindow{}, fmt.Errorf("%w: %s not in [%s, %s]", ErrInvalidOverrideDuration, d, MinOverride, c.maxOverride)
	}

	state, err := c.enforcer.State(ctx)
	if err != nil {
		return domain.OverrideWindow{}, err
	}

	now := c.clock.Now()
	var window domain.OverrideWindow
	_, err = domain.UpdateRecord(ctx, c.store, domain.KeyOverride, domain.KindOverrideWindow,
		func(cur *domain.OverrideWindow, found bool) (*domain.OverrideWindow, error) {
			window = domain.OverrideWindow{
				Active:        true,
				StartTime:     now,
				EndTime:       now.Add(d),
				RestoreManual: state.Manual || (found && cur.Active && cur.RestoreManual),
			}
			return &window, nil
		})
	if err != nil {
		return domain.OverrideWindow{}, fmt.Errorf("failed to persist override: %w", err)
	}

	if err := c.activities.StopAll(ctx); err != nil {
		return domain.OverrideWindow{}, c.abandon(ctx, fmt.Errorf("failed to stop monitoring: %w", err))
	}
	if _, err := c.enforcer.RemoveAll(ctx, "override"); err != nil {
		return domain.OverrideWindow{}, c.abandon(ctx, err)
	}
	if _, _, err := c.registry.ReregisterCommitted(ctx); err != nil {
		return window, fmt.Errorf("failed to re-register schedules: %w", err)
	}

	unlock := domain.Activity{
		Name:    domain.OverrideActivityName,
		OneShot: true,
		StartAt: window.StartTime,
		EndAt:   window.EndTime,
	}
	if err := c.activities.StartMonitoring(ctx, unlock); err != nil {
		return window, fmt.Errorf("failed to register unlock window: %w", err)
	}

	c.logger.Info("temporary unlock started",
		zap.Duration("duration", d),
		zap.Time("until", window.EndTime),
		zap.Bool("restore_manual", window.RestoreManual))
	return window, nil
}

// abandon withdraws an override whose unlock could not take effect, so no
// active record is left behind with the shield still up, and puts the
// committed windows back in case StopAll already ran.
func (c *OverrideController) abandon(ctx context.Context, cause error) error {
	errs := []error{cause}
	if err := c.reconciler.CancelOverride(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.registry.ReregisterCommitted(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to re-register schedules: %w", err))
	}
	c.logger.Warn("unlock abandoned", zap.Error(cause))
	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}

// Arm relocks when window ends. Re-arming for the same end time is a no-op.
func (c *OverrideController) Arm(window domain.OverrideWindow) {
	if !window.Active {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil && c.armed.Equal(window.EndTime) {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}

	wait := window.EndTime.Sub(c.clock.Now())
	if wait < 0 {
		wait = 0
	}
	c.armed = window.EndTime
	c.timer = time.AfterFunc(wait, func() {
		if _, err := c.ExpireIfDue(context.Background()); err != nil {
			c.logger.Error("override expiry failed", zap.Error(err))
		}
	})
	c.logger.Debug("override timer armed", zap.Duration("wait", wait))
}

// ExpireIfDue relocks when the persisted override has elapsed.
func (c *OverrideController) ExpireIfDue(ctx context.Context) (bool, error) {
	o, err := c.reconciler.Override(ctx)
	if err != nil {
		return false, err
	}
	if !o.Active || !o.Expired(c.clock.Now()) {
		return false, nil
	}

	d, err := c.reconciler.Relock(ctx, "override-expiry")
	if err != nil {
		return false, err
	}
	if err := c.activities.StopMonitoring(ctx, domain.OverrideActivityName); err != nil {
		return false, err
	}
	if d.OverrideEnded {
		if err := c.events.AppendEvent(ctx, domain.EventOverrideEnded, domain.OverrideActivityName); err != nil {
			c.logger.Warn("failed to record override end", zap.Error(err))
		}
	}
	return d.OverrideEnded, nil
}

// Cancel ends an unlock immediately without reconciling.
func (c *OverrideController) Cancel(ctx context.Context) error {
	c.Stop()
	if err := c.reconciler.CancelOverride(ctx); err != nil {
		return err
	}
	return c.activities.StopMonitoring(ctx, domain.OverrideActivityName)
}

// Stop disarms the timer.
func (c *OverrideController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.armed = time.Time{}
}
