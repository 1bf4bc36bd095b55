package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/policy"
)

// DiagnosticScheduleName is the name of the short-lead test window.
const DiagnosticScheduleName = "TEST_MONITOR"

// Diagnostic window defaults.
const (
	DefaultDiagnosticLead   = 3 * time.Minute
	DefaultDiagnosticLength = 15 * time.Minute
)

// BackendError is a schedule the scheduling backend refused.
type BackendError struct {
	Name string
	Err  error
}

// SetResult reports what SetSchedules committed.
type SetResult struct {
	Accepted      []domain.Schedule
	Rejected      []policy.Rejection
	BackendErrors []BackendError
	Registered    int
	Decision      Decision
}

// ScheduleRegistryConfig holds registry tunables.
type ScheduleRegistryConfig struct {
	MinimumWindow    time.Duration
	DiagnosticLead   time.Duration
	DiagnosticLength time.Duration
}

// DefaultScheduleRegistryConfig returns the default tunables.
func DefaultScheduleRegistryConfig() ScheduleRegistryConfig {
	return ScheduleRegistryConfig{
		MinimumWindow:    policy.DefaultMinimumWindow,
		DiagnosticLead:   DefaultDiagnosticLead,
		DiagnosticLength: DefaultDiagnosticLength,
	}
}

// ScheduleRegistry owns the committed schedule list and keeps the
// scheduling backend in step with it.
type ScheduleRegistry struct {
	store      domain.SharedStore
	activities domain.ActivityCenter
	enforcer   *ShieldEnforcer
	reconciler *Reconciler
	events     *EventChannel
	clock      domain.Clock
	config     ScheduleRegistryConfig
	logger     *zap.Logger
}

// NewScheduleRegistry creates a schedule registry.
func NewScheduleRegistry(
	store domain.SharedStore,
	activities domain.ActivityCenter,
	enforcer *ShieldEnforcer,
	reconciler *Reconciler,
	events *EventChannel,
	clock domain.Clock,
	config ScheduleRegistryConfig,
	logger *zap.Logger,
) *ScheduleRegistry {
	return &ScheduleRegistry{
		store:      store,
		activities: activities,
		enforcer:   enforcer,
		reconciler: reconciler,
		events:     events,
		clock:      clock,
		config:     config,
		logger:     logger,
	}
}

// SetSchedules replaces the committed list. Invalid entries are dropped and
// reported; only storage failures return an error.
func (r *ScheduleRegistry) SetSchedules(ctx context.Context, list []domain.Schedule) (SetResult, error) {
	accepted, rejected := policy.ValidateBatch(list, r.config.MinimumWindow)
	result := SetResult{Accepted: accepted, Rejected: rejected}

	for _, rej := range rejected {
		r.logger.Warn("schedule rejected",
			zap.String("schedule", rej.Schedule.Name),
			zap.Error(rej.Reason))
		if err := r.events.AppendEvent(ctx, domain.EventScheduleRejected, rej.Schedule.Name); err != nil {
			r.logger.Warn("failed to record rejection", zap.Error(err))
		}
	}

	committed := domain.ScheduleList{Schedules: accepted, CommittedAt: r.clock.Now().Unix()}
	if err := domain.SaveRecord(ctx, r.store, domain.KeySchedules, domain.KindScheduleList, &committed); err != nil {
		return result, fmt.Errorf("failed to persist schedules: %w", err)
	}

	if err := r.activities.StopAll(ctx); err != nil {
		return result, fmt.Errorf("failed to stop monitoring: %w", err)
	}

	registered, backendErrs, err := r.registerEnabled(ctx, accepted)
	result.Registered = registered
	result.BackendErrors = backendErrs
	if err != nil {
		return result, err
	}

	if registered == 0 {
		changed, err := r.enforcer.RemoveAll(ctx, "schedules")
		if err != nil {
			return result, err
		}
		result.Decision = Decision{Changed: changed, Reason: ReasonNoWindow}
	} else {
		d, err := r.reconciler.Reconcile(ctx, "schedules")
		if err != nil {
			return result, err
		}
		result.Decision = d
	}

	r.logger.Info("schedules committed",
		zap.Int("accepted", len(accepted)),
		zap.Int("rejected", len(rejected)),
		zap.Int("registered", registered),
		zap.Int("backend_errors", len(backendErrs)))
	return result, nil
}

// RemoveAll cancels every window, forgets the committed list and lifts the shield.
func (r *ScheduleRegistry) RemoveAll(ctx context.Context) error {
	if err := r.activities.StopAll(ctx); err != nil {
		return fmt.Errorf("failed to stop monitoring: %w", err)
	}
	if err := r.store.Delete(ctx, domain.KeySchedules); err != nil {
		return fmt.Errorf("failed to delete schedules: %w", err)
	}
	if _, err := r.enforcer.RemoveAll(ctx, "schedules"); err != nil {
		return err
	}
	r.logger.Info("all schedules removed")
	return nil
}

// Committed re-reads the persisted list.
func (r *ScheduleRegistry) Committed(ctx context.Context) ([]domain.Schedule, error) {
	var list domain.ScheduleList
	if _, err := domain.LoadRecord(ctx, r.store, domain.KeySchedules, domain.KindScheduleList, &list); err != nil {
		return nil, err
	}
	return list.Schedules, nil
}

// DisplayName maps an activity name back to the committed schedule name.
func (r *ScheduleRegistry) DisplayName(ctx context.Context, activity string) string {
	list, err := r.Committed(ctx)
	if err != nil {
		return activity
	}
	for _, s := range list {
		if s.ActivityName() == activity {
			return s.Name
		}
	}
	return activity
}

// CreateDiagnostic commits a short non-repeating window starting shortly
// after now, replacing an earlier diagnostic window.
func (r *ScheduleRegistry) CreateDiagnostic(ctx context.Context) (domain.Schedule, SetResult, error) {
	start := policy.MinuteOfDay(r.clock.Now().Add(r.config.DiagnosticLead))
	length := int(r.config.DiagnosticLength / time.Minute)
	diag := domain.Schedule{
		Name:        DiagnosticScheduleName,
		StartMinute: start,
		EndMinute:   (start + length) % domain.MinutesPerDay,
		Enabled:     true,
		Repeats:     false,
	}

	committed, err := r.Committed(ctx)
	if err != nil && !errors.Is(err, domain.ErrStorageDecode) {
		return diag, SetResult{}, err
	}
	merged := make([]domain.Schedule, 0, len(committed)+1)
	for _, s := range committed {
		if s.ActivityName() != diag.ActivityName() {
			merged = append(merged, s)
		}
	}
	merged = append(merged, diag)

	result, err := r.SetSchedules(ctx, merged)
	return diag, result, err
}

// errNoScheduleList aborts a retire when there is no readable list to edit.
var errNoScheduleList = errors.New("no committed schedule list")

// Retire drops a finished non-repeating window from the committed list so
// that a later re-registration does not bring it back. It reports whether
// an entry was removed.
func (r *ScheduleRegistry) Retire(ctx context.Context, activity string) (bool, error) {
	var removed bool
	_, err := domain.UpdateRecord(ctx, r.store, domain.KeySchedules, domain.KindScheduleList,
		func(cur *domain.ScheduleList, found bool) (*domain.ScheduleList, error) {
			if !found {
				return nil, errNoScheduleList
			}
			kept := cur.Schedules[:0:0]
			for _, s := range cur.Schedules {
				if s.ActivityName() == activity && !s.Repeats {
					removed = true
					continue
				}
				kept = append(kept, s)
			}
			cur.Schedules = kept
			return cur, nil
		})
	if errors.Is(err, errNoScheduleList) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to retire %s: %w", activity, err)
	}
	if removed {
		r.logger.Info("finished one-time window retired", zap.String("activity", activity))
	}
	return removed, nil
}

// ReregisterCommitted registers every enabled committed window without
// touching the current registrations.
func (r *ScheduleRegistry) ReregisterCommitted(ctx context.Context) (int, []BackendError, error) {
	committed, err := r.Committed(ctx)
	if errors.Is(err, domain.ErrStorageDecode) {
		r.logger.Warn("committed schedules unreadable", zap.Error(err))
		if evErr := r.events.AppendEvent(ctx, domain.EventStorageDecodeFailure, domain.KeySchedules); evErr != nil {
			r.logger.Warn("failed to record decode failure", zap.Error(evErr))
		}
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return r.registerEnabled(ctx, committed)
}

func (r *ScheduleRegistry) registerEnabled(ctx context.Context, list []domain.Schedule) (int, []BackendError, error) {
	var registered int
	var backendErrs []BackendError

	for _, s := range list {
		if !s.Enabled {
			continue
		}
		err := r.activities.StartMonitoring(ctx, ActivityFor(s))
		if errors.Is(err, domain.ErrSchedulingBackendRejected) {
			r.logger.Warn("scheduling backend refused window",
				zap.String("schedule", s.Name),
				zap.Error(err))
			backendErrs = append(backendErrs, BackendError{Name: s.Name, Err: err})
			if evErr := r.events.AppendEvent(ctx, domain.EventScheduleBackendRejected, s.Name); evErr != nil {
				r.logger.Warn("failed to record backend rejection", zap.Error(evErr))
			}
			continue
		}
		if err != nil {
			return registered, backendErrs, fmt.Errorf("failed to register %s: %w", s.Name, err)
		}
		registered++
	}
	return registered, backendErrs, nil
}

// ActivityFor maps a schedule to its backend registration.
func ActivityFor(s domain.Schedule) domain.Activity {
	return domain.Activity{
		Name:        s.ActivityName(),
		StartMinute: s.StartMinute,
		EndMinute:   s.EndMinute,
		Repeats:     s.Repeats,
	}
}
