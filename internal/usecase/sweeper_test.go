package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/infra"
	"github.com/eliteGoblin/focusd/shieldmon/test/fixtures"
)

func newTestSweeper(t *testing.T, state domain.ShieldState, pm *mockProcessManager) *Sweeper {
	t.Helper()
	surface := infra.NewStoreSurface(infra.NewMemStore())
	if !state.IsEmpty() {
		require.NoError(t, surface.Write(context.Background(), state))
	}
	return NewSweeper(surface, pm, AuthGate{}, fixtures.NewManualClock(fixtures.At(8, 0)), zap.NewNop())
}

// TestSweeper_NoShield verifies nothing is looked up when the shield is down
func TestSweeper_NoShield(t *testing.T) {
	pm := &mockProcessManager{findErr: errors.New("must not be called")}
	s := newTestSweeper(t, domain.ShieldState{}, pm)

	result, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.KilledPIDs)
	assert.Empty(t, result.Errors)
}

// TestSweeper_KillsMatchingProcesses verifies glob patterns and self-protection
func TestSweeper_KillsMatchingProcesses(t *testing.T) {
	pm := &mockProcessManager{
		procs: map[int]string{
			1001: "steam",
			1002: "steam helper (renderer)",
			1003: "dota2",
			1004: "safari",
			42:   "steam",
		},
		self: 42,
	}
	s := newTestSweeper(t, domain.ShieldState{
		Applications: []string{"Steam", "steam helper*", "dota2"},
		Categories:   []string{"games"},
		Domains:      []string{"store.steampowered.com"},
		Source:       "monitor:Morning",
	}, pm)

	result, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1001, 1002, 1003}, result.KilledPIDs)
	assert.ElementsMatch(t, []int{1001, 1002, 1003}, pm.killedPIDs)
	assert.Equal(t, []domain.Target{
		{Kind: domain.TargetCategory, ID: "games"},
		{Kind: domain.TargetDomain, ID: "store.steampowered.com"},
	}, result.Skipped)
	assert.Equal(t, fixtures.At(8, 0), result.ExecutedAt)
}

func TestSweeper_Errors(t *testing.T) {
	tests := []struct {
		name       string
		apps       []string
		pm         *mockProcessManager
		wantErrors int
		wantKilled int
	}{
		{
			name:       "invalid pattern",
			apps:       []string{"[steam", "dota2"},
			pm:         &mockProcessManager{procs: map[int]string{7: "dota2"}},
			wantErrors: 1,
			wantKilled: 1,
		},
		{
			name:       "process lookup fails",
			apps:       []string{"steam"},
			pm:         &mockProcessManager{findErr: errors.New("ps failed")},
			wantErrors: 1,
		},
		{
			name:       "kill fails",
			apps:       []string{"steam"},
			pm:         &mockProcessManager{procs: map[int]string{7: "steam"}, killErr: errors.New("denied")},
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSweeper(t, domain.ShieldState{Applications: tt.apps}, tt.pm)
			result, err := s.Sweep(context.Background())
			require.NoError(t, err)
			assert.Len(t, result.Errors, tt.wantErrors)
			assert.Len(t, result.KilledPIDs, tt.wantKilled)
		})
	}
}

// TestSweeper_WithoutAuthorization verifies no process is killed when enforcement is denied
func TestSweeper_WithoutAuthorization(t *testing.T) {
	pm := &mockProcessManager{procs: map[int]string{1001: "steam"}, self: 42}
	surface := infra.NewStoreSurface(infra.NewMemStore())
	require.NoError(t, surface.Write(context.Background(), domain.ShieldState{Applications: []string{"steam"}}))
	s := NewSweeper(surface, pm, NewAuthGate(&fakeAuthorizer{status: domain.AuthDenied}),
		fixtures.NewManualClock(fixtures.At(8, 0)), zap.NewNop())

	result, err := s.Sweep(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthorizationDenied)
	assert.Empty(t, result.KilledPIDs)
	assert.Empty(t, pm.killedPIDs)
}
