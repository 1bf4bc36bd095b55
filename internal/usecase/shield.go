package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// ShieldEnforcer is the only writer of the enforcement surface.
// Every operation is idempotent: an unchanged state is never rewritten.
type ShieldEnforcer struct {
	surface    domain.EnforcementSurface
	selections *SelectionStore
	clock      domain.Clock
	logger     *zap.Logger
}

// NewShieldEnforcer creates a shield enforcer.
func NewShieldEnforcer(surface domain.EnforcementSurface, selections *SelectionStore, clock domain.Clock, logger *zap.Logger) *ShieldEnforcer {
	return &ShieldEnforcer{surface: surface, selections: selections, clock: clock, logger: logger}
}

// Apply restricts exactly sel, keeping the current manual hold.
// Applying an empty selection removes every restriction.
func (e *ShieldEnforcer) Apply(ctx context.Context, sel domain.TargetSelection, source string) (bool, error) {
	cur, err := e.surface.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read shield: %w", err)
	}
	return e.write(ctx, cur, sel, cur.Manual, source)
}

// ApplyManual restricts sel and marks the shield as held by the user.
// A manual hold survives the end of a schedule window.
func (e *ShieldEnforcer) ApplyManual(ctx context.Context, sel domain.TargetSelection, source string) (bool, error) {
	cur, err := e.surface.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read shield: %w", err)
	}
	return e.write(ctx, cur, sel, !sel.IsEmpty(), source)
}

// ReleaseManual drops the manual hold without touching the targets.
func (e *ShieldEnforcer) ReleaseManual(ctx context.Context, source string) error {
	cur, err := e.surface.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read shield: %w", err)
	}
	if !cur.Manual {
		return nil
	}
	_, err = e.write(ctx, cur, cur.Targets(), false, source)
	return err
}

// ApplyCurrent applies the stored selection; ErrNoSelection when none is stored.
func (e *ShieldEnforcer) ApplyCurrent(ctx context.Context, source string) (bool, error) {
	sel, err := e.selections.Load(ctx)
	if err != nil {
		return false, err
	}
	if sel.IsEmpty() {
		return false, domain.ErrNoSelection
	}
	return e.Apply(ctx, sel, source)
}

// RemoveAll lifts every restriction. Removing an empty shield is a no-op.
func (e *ShieldEnforcer) RemoveAll(ctx context.Context, source string) (bool, error) {
	cur, err := e.surface.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read shield: %w", err)
	}
	if cur.IsEmpty() && !cur.Manual {
		return false, nil
	}
	if err := e.surface.Clear(ctx); err != nil {
		return false, fmt.Errorf("failed to clear shield: %w", err)
	}
	e.logger.Info("shield removed", zap.String("source", source))
	return true, nil
}

// IsApplied reports whether any restriction is in place.
func (e *ShieldEnforcer) IsApplied(ctx context.Context) (bool, error) {
	cur, err := e.surface.Read(ctx)
	if err != nil {
		return false, err
	}
	return !cur.IsEmpty(), nil
}

// State returns the current shield state.
func (e *ShieldEnforcer) State(ctx context.Context) (domain.ShieldState, error) {
	return e.surface.Read(ctx)
}

func (e *ShieldEnforcer) write(ctx context.Context, cur domain.ShieldState, sel domain.TargetSelection, manual bool, source string) (bool, error) {
	sel = sel.Normalize()
	if sel.IsEmpty() {
		return e.RemoveAll(ctx, source)
	}
	if cur.Targets().Normalize().Equal(sel) && cur.Manual == manual {
		return false, nil
	}

	next := domain.ShieldState{
		Applications: sel.Applications,
		Categories:   sel.Categories,
		Domains:      sel.Domains,
		Manual:       manual,
		AppliedAt:    e.clock.Now().Unix(),
		Source:       source,
	}
	if err := e.surface.Write(ctx, next); err != nil {
		return false, fmt.Errorf("failed to write shield: %w", err)
	}

	e.logger.Info("shield applied",
		zap.String("source", source),
		zap.Int("targets", sel.Count()),
		zap.Bool("manual", manual))
	return true, nil
}
