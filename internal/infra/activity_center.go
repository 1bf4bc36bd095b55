package infra

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/policy"
)

// DefaultMinimumInterval is the shortest repeating window the backend accepts.
const DefaultMinimumInterval = 15 * time.Minute

// StoreActivityCenter implements domain.ActivityCenter as a registration list
// in the shared store. The scheduler daemon watches that list and fires
// boundary events for it.
type StoreActivityCenter struct {
	store       domain.SharedStore
	clock       domain.Clock
	minInterval time.Duration
	logger      *zap.Logger
}

// NewActivityCenter creates an activity center over store.
func NewActivityCenter(store domain.SharedStore, clock domain.Clock, minInterval time.Duration, logger *zap.Logger) *StoreActivityCenter {
	if minInterval <= 0 {
		minInterval = DefaultMinimumInterval
	}
	return &StoreActivityCenter{store: store, clock: clock, minInterval: minInterval, logger: logger}
}

// StartMonitoring registers a, replacing any registration with the same name.
func (c *StoreActivityCenter) StartMonitoring(ctx context.Context, a domain.Activity) error {
	if err := c.accept(a); err != nil {
		c.logger.Warn("activity rejected",
			zap.String("activity", a.Name),
			zap.Error(err))
		return err
	}

	recovered, err := domain.UpdateRecord(ctx, c.store, domain.KeyActivities, domain.KindActivityList,
		func(cur *domain.ActivityList, _ bool) (*domain.ActivityList, error) {
			next := &domain.ActivityList{}
			for _, existing := range cur.Activities {
				if existing.Name != a.Name {
					next.Activities = append(next.Activities, existing)
				}
			}
			next.Activities = append(next.Activities, a)
			return next, nil
		})
	if err != nil {
		return fmt.Errorf("failed to register activity %s: %w", a.Name, err)
	}
	if recovered {
		c.logger.Warn("discarded corrupt activity list", zap.String("key", domain.KeyActivities))
	}

	c.logger.Info("activity registered",
		zap.String("activity", a.Name),
		zap.Bool("one_shot", a.OneShot))
	return nil
}

// StopMonitoring unregisters the named activities.
func (c *StoreActivityCenter) StopMonitoring(ctx context.Context, names ...string) error {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	_, err := domain.UpdateRecord(ctx, c.store, domain.KeyActivities, domain.KindActivityList,
		func(cur *domain.ActivityList, found bool) (*domain.ActivityList, error) {
			if !found {
				return nil, nil
			}
			next := &domain.ActivityList{}
			for _, a := range cur.Activities {
				if !drop[a.Name] {
					next.Activities = append(next.Activities, a)
				}
			}
			if len(next.Activities) == 0 {
				return nil, nil
			}
			return next, nil
		})
	if err != nil {
		return fmt.Errorf("failed to unregister activities: %w", err)
	}
	return nil
}

// StopAll drops every registration in one write.
func (c *StoreActivityCenter) StopAll(ctx context.Context) error {
	if err := c.store.Delete(ctx, domain.KeyActivities); err != nil {
		return fmt.Errorf("failed to stop all activities: %w", err)
	}
	c.logger.Info("all activities stopped")
	return nil
}

// Activities returns the current registrations.
func (c *StoreActivityCenter) Activities(ctx context.Context) ([]domain.Activity, error) {
	var list domain.ActivityList
	if _, err := domain.LoadRecord(ctx, c.store, domain.KeyActivities, domain.KindActivityList, &list); err != nil {
		return nil, err
	}
	return list.Activities, nil
}

func (c *StoreActivityCenter) accept(a domain.Activity) error {
	if a.Name == "" {
		return fmt.Errorf("%w: activity without name", domain.ErrSchedulingBackendRejected)
	}
	if a.OneShot {
		if !a.EndAt.After(a.StartAt) {
			return fmt.Errorf("%w: %s ends before it starts", domain.ErrSchedulingBackendRejected, a.Name)
		}
		if !a.EndAt.After(c.clock.Now()) {
			return fmt.Errorf("%w: %s already ended", domain.ErrSchedulingBackendRejected, a.Name)
		}
		return nil
	}
	if a.StartMinute == a.EndMinute {
		return fmt.Errorf("%w: %s has an empty window", domain.ErrSchedulingBackendRejected, a.Name)
	}
	w := policy.Window{Start: a.StartMinute, End: a.EndMinute}
	if d := w.Duration(); d < c.minInterval {
		return fmt.Errorf("%w: %s lasts %s, backend minimum is %s",
			domain.ErrSchedulingBackendRejected, a.Name, d, c.minInterval)
	}
	return nil
}

var _ domain.ActivityCenter = (*StoreActivityCenter)(nil)
