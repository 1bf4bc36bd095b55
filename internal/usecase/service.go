package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// Service is the command surface used by the foreground process.
// Every mutating command requires an approved authorization.
type Service struct {
	auth       domain.Authorizer
	store      domain.SharedStore
	selections *SelectionStore
	enforcer   *ShieldEnforcer
	reconciler *Reconciler
	registry   *ScheduleRegistry
	override   *OverrideController
	events     *EventChannel
	activities domain.ActivityCenter
	processes  domain.ProcessManager
	clock      domain.Clock
	logger     *zap.Logger
}

// IsAuthorized reports whether enforcement is approved.
func (s *Service) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := s.auth.Status(ctx)
	if err != nil {
		return false, err
	}
	return status == domain.AuthApproved, nil
}

// RequestAuthorization runs the platform check and records the decision.
func (s *Service) RequestAuthorization(ctx context.Context, approve bool) (domain.AuthorizationStatus, error) {
	return s.auth.Request(ctx, approve)
}

func (s *Service) requireAuth(ctx context.Context) error {
	ok, err := s.IsAuthorized(ctx)
	if err != nil {
		return fmt.Errorf("failed to read authorization: %w", err)
	}
	if !ok {
		return domain.ErrAuthorizationDenied
	}
	return nil
}

// SaveSelection stores sel and brings the shield in line with it.
// An empty selection is the same as ClearSelection.
func (s *Service) SaveSelection(ctx context.Context, sel domain.TargetSelection) error {
	if err := s.requireAuth(ctx); err != nil {
		return err
	}
	if sel.Normalize().IsEmpty() {
		return s.clearSelection(ctx)
	}
	if err := s.selections.Save(ctx, sel); err != nil {
		return err
	}
	_, err := s.reconciler.Reconcile(ctx, "selection")
	return err
}

// HasSelection reports whether a non-empty selection is stored.
func (s *Service) HasSelection(ctx context.Context) (bool, error) {
	sel, err := s.selections.Load(ctx)
	if err != nil {
		return false, err
	}
	return !sel.IsEmpty(), nil
}

// SelectionSummary returns per-kind counts of the stored selection.
func (s *Service) SelectionSummary(ctx context.Context) (domain.SelectionSummary, error) {
	sel, err := s.selections.Load(ctx)
	if err != nil {
		return domain.SelectionSummary{}, err
	}
	return sel.Summary(), nil
}

// ClearSelection forgets the selection, cancels every schedule and lifts the shield.
func (s *Service) ClearSelection(ctx context.Context) error {
	if err := s.requireAuth(ctx); err != nil {
		return err
	}
	return s.clearSelection(ctx)
}

func (s *Service) clearSelection(ctx context.Context) error {
	if err := s.selections.Clear(ctx); err != nil {
		return err
	}
	if err := s.override.Cancel(ctx); err != nil {
		return err
	}
	if err := s.registry.RemoveAll(ctx); err != nil {
		return err
	}
	s.logger.Info("selection cleared")
	return nil
}

// SetSchedules replaces the committed schedules.
func (s *Service) SetSchedules(ctx context.Context, list []domain.Schedule) (SetResult, error) {
	if err := s.requireAuth(ctx); err != nil {
		return SetResult{}, err
	}
	return s.registry.SetSchedules(ctx, list)
}

// RemoveAllSchedules cancels every schedule and lifts the shield.
func (s *Service) RemoveAllSchedules(ctx context.Context) error {
	if err := s.requireAuth(ctx); err != nil {
		return err
	}
	return s.registry.RemoveAll(ctx)
}

// Schedules returns the committed schedules.
func (s *Service) Schedules(ctx context.Context) ([]domain.Schedule, error) {
	return s.registry.Committed(ctx)
}

// Activities returns the windows registered with the scheduling backend.
func (s *Service) Activities(ctx context.Context) ([]domain.Activity, error) {
	return s.activities.Activities(ctx)
}

// RequestTemporaryUnlock lifts the shield for d.
func (s *Service) RequestTemporaryUnlock(ctx context.Context, d time.Duration) (domain.OverrideWindow, error) {
	if err := s.requireAuth(ctx); err != nil {
		return domain.OverrideWindow{}, err
	}
	return s.override.RequestTemporaryUnlock(ctx, d)
}

// ApplyShieldsNow applies the selection immediately and holds it until the
// next window end. A running unlock is cancelled.
func (s *Service) ApplyShieldsNow(ctx context.Context) error {
	if err := s.requireAuth(ctx); err != nil {
		return err
	}
	sel, err := s.selections.Load(ctx)
	if err != nil {
		return err
	}
	if sel.IsEmpty() {
		return domain.ErrNoSelection
	}
	if err := s.override.Cancel(ctx); err != nil {
		return err
	}
	_, err = s.enforcer.ApplyManual(ctx, sel, "manual")
	return err
}

// RemoveShields lifts every restriction now.
func (s *Service) RemoveShields(ctx context.Context) error {
	if err := s.requireAuth(ctx); err != nil {
		return err
	}
	_, err := s.enforcer.RemoveAll(ctx, "manual")
	return err
}

// ReconcileNow enforces the shield if a window is active right now.
func (s *Service) ReconcileNow(ctx context.Context) (Decision, error) {
	if err := s.requireAuth(ctx); err != nil {
		return Decision{}, err
	}
	return s.reconciler.Reconcile(ctx, "reconcile")
}

// CreateDiagnosticSchedule commits a short test window.
func (s *Service) CreateDiagnosticSchedule(ctx context.Context) (domain.Schedule, SetResult, error) {
	if err := s.requireAuth(ctx); err != nil {
		return domain.Schedule{}, SetResult{}, err
	}
	return s.registry.CreateDiagnostic(ctx)
}

// ShieldState returns what is currently restricted.
func (s *Service) ShieldState(ctx context.Context) (domain.ShieldState, error) {
	return s.enforcer.State(ctx)
}

// Override returns the persisted unlock window.
func (s *Service) Override(ctx context.Context) (domain.OverrideWindow, error) {
	return s.reconciler.Override(ctx)
}

// EventHistory returns recent monitor events, newest first.
func (s *Service) EventHistory(ctx context.Context) ([]domain.EventRecord, error) {
	return s.events.ReadHistory(ctx)
}

// MonitorStatus reports whether the monitor ever ran and what it did last.
func (s *Service) MonitorStatus(ctx context.Context) (domain.MonitorStatus, error) {
	var status domain.MonitorStatus
	now := s.clock.Now()

	marker, found, err := s.events.MonitorInit(ctx)
	if err != nil {
		return status, err
	}
	if found {
		status.EverInitialized = true
		status.InitializedAt = time.Unix(marker.InitializedAt, 0)
	}

	history, err := s.events.ReadHistory(ctx)
	if err != nil {
		return status, err
	}
	if len(history) > 0 {
		last := history[0]
		status.LastEvent = &last
		status.LastEventAgeMinutes = int(now.Sub(last.Time()) / time.Minute)
	}

	var hb domain.DaemonHeartbeat
	found, err = domain.LoadRecord(ctx, s.store, domain.KeySchedulerHeartbeat, domain.KindDaemonHeartbeat, &hb)
	if err != nil && !errors.Is(err, domain.ErrStorageDecode) {
		return status, err
	}
	if found {
		status.SchedulerPID = hb.PID
		status.LastHeartbeat = time.Unix(hb.LastHeartbeat, 0)
		status.SchedulerAlive = s.processes != nil && s.processes.IsRunning(hb.PID)
	}
	return status, nil
}

// ReadAndClearNavigationFlag reports and clears a pending navigation request.
func (s *Service) ReadAndClearNavigationFlag(ctx context.Context) (bool, error) {
	f, ok, err := s.events.ReadAndClearFlag(ctx, domain.FlagNavigate)
	if err != nil || !ok {
		return false, err
	}
	return f.Value == "true", nil
}

// ReadAndClearScheduleEndedFlag returns the name of the schedule that ended last.
func (s *Service) ReadAndClearScheduleEndedFlag(ctx context.Context) (string, bool, error) {
	f, ok, err := s.events.ReadAndClearFlag(ctx, domain.FlagScheduleEnded)
	if err != nil || !ok {
		return "", false, err
	}
	return f.Value, true, nil
}

// ConsumeNotification takes the oldest pending notification and clears the
// navigation flag it was raised with.
func (s *Service) ConsumeNotification(ctx context.Context) (domain.Notification, bool, error) {
	n, ok, err := s.events.TakeNotification(ctx)
	if err != nil || !ok {
		return domain.Notification{}, false, err
	}
	if _, _, err := s.events.ReadAndClearFlag(ctx, domain.FlagNavigate); err != nil {
		return n, true, err
	}
	return n, true, nil
}
