package infra

import (
	"context"
	"fmt"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// StoreSurface implements domain.EnforcementSurface as the "shield" record.
// The daemon's sweeper reads it and acts on the running system.
type StoreSurface struct {
	store domain.SharedStore
}

// NewStoreSurface creates a surface over store.
func NewStoreSurface(store domain.SharedStore) *StoreSurface {
	return &StoreSurface{store: store}
}

// Read returns the current state; absent means nothing is restricted.
func (s *StoreSurface) Read(ctx context.Context) (domain.ShieldState, error) {
	var state domain.ShieldState
	if _, err := domain.LoadRecord(ctx, s.store, domain.KeyShield, domain.KindShieldState, &state); err != nil {
		return domain.ShieldState{}, err
	}
	return state, nil
}

func (s *StoreSurface) Write(ctx context.Context, state domain.ShieldState) error {
	if err := domain.SaveRecord(ctx, s.store, domain.KeyShield, domain.KindShieldState, &state); err != nil {
		return fmt.Errorf("failed to write shield: %w", err)
	}
	return nil
}

func (s *StoreSurface) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, domain.KeyShield); err != nil {
		return fmt.Errorf("failed to clear shield: %w", err)
	}
	return nil
}

var _ domain.EnforcementSurface = (*StoreSurface)(nil)
