package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// SelectionStore persists the user's restriction targets.
type SelectionStore struct {
	store  domain.SharedStore
	logger *zap.Logger
}

// NewSelectionStore creates a selection store.
func NewSelectionStore(store domain.SharedStore, logger *zap.Logger) *SelectionStore {
	return &SelectionStore{store: store, logger: logger}
}

// Save normalizes and writes sel; it is durable when Save returns.
func (s *SelectionStore) Save(ctx context.Context, sel domain.TargetSelection) error {
	sel = sel.Normalize()
	if err := domain.SaveRecord(ctx, s.store, domain.KeySelection, domain.KindSelection, &sel); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	s.logger.Info("selection saved",
		zap.Int("applications", len(sel.Applications)),
		zap.Int("categories", len(sel.Categories)),
		zap.Int("domains", len(sel.Domains)))
	return nil
}

// Load returns the selection; absent is empty. Corruption returns ErrStorageDecode.
func (s *SelectionStore) Load(ctx context.Context) (domain.TargetSelection, error) {
	var sel domain.TargetSelection
	if _, err := domain.LoadRecord(ctx, s.store, domain.KeySelection, domain.KindSelection, &sel); err != nil {
		return domain.TargetSelection{}, err
	}
	return sel, nil
}

// Clear deletes the stored selection only. Service.ClearSelection also
// cancels schedules and lifts the shield.
func (s *SelectionStore) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, domain.KeySelection); err != nil {
		return fmt.Errorf("failed to clear selection: %w", err)
	}
	return nil
}
