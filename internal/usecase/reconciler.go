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

// Reconcile reasons.
const (
	ReasonOverride     = "override_active"
	ReasonWindowActive = "window_active"
	ReasonManualHold   = "manual_hold"
	ReasonNoWindow     = "no_active_window"
	ReasonNoSelection  = "no_selection"
)

// Decision is the outcome of one reconcile pass.
type Decision struct {
	Applied bool
	Changed bool
	Reason  string
	Window  string // activity that justified the shield, if any

	// OverrideEnded is set by the Relock call that deactivated the override.
	OverrideEnded bool
}

// Reconciler derives the desired shield from the persisted state at now:
// override, registered windows, manual hold and selection.
type Reconciler struct {
	store      domain.SharedStore
	activities domain.ActivityCenter
	selections *SelectionStore
	enforcer   *ShieldEnforcer
	auth       AuthGate
	clock      domain.Clock
	logger     *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(
	store domain.SharedStore,
	activities domain.ActivityCenter,
	selections *SelectionStore,
	enforcer *ShieldEnforcer,
	auth AuthGate,
	clock domain.Clock,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		store:      store,
		activities: activities,
		selections: selections,
		enforcer:   enforcer,
		auth:       auth,
		clock:      clock,
		logger:     logger,
	}
}

// Override returns the persisted override window. Corrupt reads as inactive.
func (r *Reconciler) Override(ctx context.Context) (domain.OverrideWindow, error) {
	var o domain.OverrideWindow
	_, err := domain.LoadRecord(ctx, r.store, domain.KeyOverride, domain.KindOverrideWindow, &o)
	if errors.Is(err, domain.ErrStorageDecode) {
		r.logger.Warn("override record unreadable", zap.Error(err))
		return domain.OverrideWindow{}, nil
	}
	return o, err
}

// OverrideActive reports whether an unexpired override is in force.
func (r *Reconciler) OverrideActive(ctx context.Context) (bool, error) {
	o, err := r.Override(ctx)
	if err != nil {
		return false, err
	}
	return o.Active && !o.Expired(r.clock.Now()), nil
}

// Reconcile applies the selection when a registered window is active now
// or the shield is held manually, and removes it otherwise.
// Activities named in exclude are treated as inactive.
// Without authorization it returns domain.ErrAuthorizationDenied and changes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, source string, exclude ...string) (Decision, error) {
	if err := r.auth.Require(ctx); err != nil {
		return Decision{}, err
	}
	return r.reconcile(ctx, source, false, exclude...)
}

func (r *Reconciler) reconcile(ctx context.Context, source string, forceManual bool, exclude ...string) (Decision, error) {
	now := r.clock.Now()

	active, err := r.OverrideActive(ctx)
	if err != nil {
		return Decision{}, err
	}
	if active {
		changed, err := r.enforcer.RemoveAll(ctx, source)
		return Decision{Changed: changed, Reason: ReasonOverride}, err
	}

	window, err := r.activeWindow(ctx, now, exclude)
	if err != nil {
		return Decision{}, err
	}

	state, err := r.enforcer.State(ctx)
	if err != nil {
		return Decision{}, err
	}
	manual := forceManual || state.Manual

	if window == "" && !manual {
		changed, err := r.enforcer.RemoveAll(ctx, source)
		return Decision{Changed: changed, Reason: ReasonNoWindow}, err
	}

	sel, err := r.selections.Load(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load selection: %w", err)
	}
	if sel.IsEmpty() {
		changed, err := r.enforcer.RemoveAll(ctx, source)
		return Decision{Changed: changed, Reason: ReasonNoSelection}, err
	}

	var changed bool
	reason := ReasonWindowActive
	if manual {
		changed, err = r.enforcer.ApplyManual(ctx, sel, source)
		if window == "" {
			reason = ReasonManualHold
		}
	} else {
		changed, err = r.enforcer.Apply(ctx, sel, source)
	}
	if err != nil {
		return Decision{}, err
	}
	return Decision{Applied: true, Changed: changed, Reason: reason, Window: window}, nil
}

// Relock ends the override and reconciles. Safe to call from every path that
// observes the expiry; later calls find the override inactive and converge
// on the same state. Without authorization the override is left in place.
func (r *Reconciler) Relock(ctx context.Context, source string) (Decision, error) {
	if err := r.auth.Require(ctx); err != nil {
		return Decision{}, err
	}

	var restoreManual, ended bool
	recovered, err := domain.UpdateRecord(ctx, r.store, domain.KeyOverride, domain.KindOverrideWindow,
		func(cur *domain.OverrideWindow, found bool) (*domain.OverrideWindow, error) {
			if !found {
				return nil, nil
			}
			ended = cur.Active
			restoreManual = cur.Active && cur.RestoreManual
			cur.Active = false
			cur.RestoreManual = false
			return cur, nil
		})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to end override: %w", err)
	}
	if recovered {
		r.logger.Warn("dropped corrupt override record")
	}

	d, err := r.reconcile(ctx, source, restoreManual, domain.OverrideActivityName)
	if err != nil {
		return Decision{}, err
	}
	d.OverrideEnded = ended
	r.logger.Info("relocked",
		zap.String("source", source),
		zap.Bool("applied", d.Applied),
		zap.String("reason", d.Reason))
	return d, nil
}

// CancelOverride deletes the override record without reconciling.
func (r *Reconciler) CancelOverride(ctx context.Context) error {
	if err := r.store.Delete(ctx, domain.KeyOverride); err != nil {
		return fmt.Errorf("failed to cancel override: %w", err)
	}
	return nil
}

func (r *Reconciler) activeWindow(ctx context.Context, now time.Time, exclude []string) (string, error) {
	registered, err := r.activities.Activities(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list activities: %w", err)
	}
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	for _, a := range registered {
		if skip[a.Name] || domain.IsOverrideActivity(a.Name) {
			continue
		}
		if policy.ActivityActive(a, now) {
			return a.Name, nil
		}
	}
	return "", nil
}
