package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/test/fixtures"
)

// TestService_RequiresAuthorization verifies every mutating command is gated
func TestService_RequiresAuthorization(t *testing.T) {
	env := newTestEnv(t, fixtures.At(8, 0))
	env.auth.status = domain.AuthDenied
	s := env.Service
	ctx := env.ctx

	commands := map[string]func() error{
		"save selection":  func() error { return s.SaveSelection(ctx, fixtures.GamesSelection()) },
		"clear selection": func() error { return s.ClearSelection(ctx) },
		"set schedules": func() error {
			_, err := s.SetSchedules(ctx, fixtures.MorningEvening())
			return err
		},
		"remove schedules": func() error { return s.RemoveAllSchedules(ctx) },
		"unlock": func() error {
			_, err := s.RequestTemporaryUnlock(ctx, time.Minute)
			return err
		},
		"apply now":     func() error { return s.ApplyShieldsNow(ctx) },
		"remove shield": func() error { return s.RemoveShields(ctx) },
		"reconcile": func() error {
			_, err := s.ReconcileNow(ctx)
			return err
		},
		"diagnostic": func() error {
			_, _, err := s.CreateDiagnosticSchedule(ctx)
			return err
		},
	}

	for name, run := range commands {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, run(), domain.ErrAuthorizationDenied)
		})
	}

	has, err := s.HasSelection(ctx)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestService_RequestAuthorization(t *testing.T) {
	env := newTestEnv(t, fixtures.At(8, 0))
	env.auth.status = domain.AuthNotDetermined

	ok, err := env.Service.IsAuthorized(env.ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := env.Service.RequestAuthorization(env.ctx, true)
	require.NoError(t, err)
	assert.Equal(t, domain.AuthApproved, status)
	ok, err = env.Service.IsAuthorized(env.ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestService_ClearSelection verifies clearing removes schedules and the shield
func TestService_ClearSelection(t *testing.T) {
	tests := []struct {
		name  string
		clear func(s *Service, ctx context.Context) error
	}{
		{"clear", func(s *Service, ctx context.Context) error { return s.ClearSelection(ctx) }},
		{"save empty", func(s *Service, ctx context.Context) error {
			return s.SaveSelection(ctx, domain.TargetSelection{Applications: []string{" "}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, fixtures.At(8, 30))
			require.NoError(t, env.Service.SaveSelection(env.ctx, fixtures.GamesSelection()))
			_, err := env.Service.SetSchedules(env.ctx, fixtures.MorningEvening())
			require.NoError(t, err)
			_, err = env.Service.RequestTemporaryUnlock(env.ctx, 10*time.Minute)
			require.NoError(t, err)

			require.NoError(t, tt.clear(env.Service, env.ctx))

			has, err := env.Service.HasSelection(env.ctx)
			require.NoError(t, err)
			assert.False(t, has)
			assert.Empty(t, env.activityNames(t))
			assert.True(t, env.shield(t).IsEmpty())
			schedules, err := env.Service.Schedules(env.ctx)
			require.NoError(t, err)
			assert.Empty(t, schedules)
			o, err := env.Service.Override(env.ctx)
			require.NoError(t, err)
			assert.False(t, o.Active)
		})
	}
}

func TestService_SaveSelectionReconciles(t *testing.T) {
	env := newTestEnv(t, fixtures.At(8, 30))
	_, err := env.Service.SetSchedules(env.ctx, fixtures.MorningEvening())
	require.NoError(t, err)
	require.True(t, env.shield(t).IsEmpty())

	require.NoError(t, env.Service.SaveSelection(env.ctx, fixtures.GamesSelection()))
	assert.Equal(t, fixtures.GamesSelection().Normalize(), env.shield(t).Targets())

	summary, err := env.Service.SelectionSummary(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SelectionSummary{Applications: 3, Categories: 1, Domains: 1}, summary)
}

func TestService_ApplyShieldsNow(t *testing.T) {
	env := newTestEnv(t, fixtures.At(12, 0))
	assert.ErrorIs(t, env.Service.ApplyShieldsNow(env.ctx), domain.ErrNoSelection)

	env.selectGames(t)
	_, err := env.Service.RequestTemporaryUnlock(env.ctx, time.Hour)
	require.NoError(t, err)

	require.NoError(t, env.Service.ApplyShieldsNow(env.ctx))
	state := env.shield(t)
	assert.True(t, state.Manual)
	assert.False(t, state.IsEmpty())

	o, err := env.Service.Override(env.ctx)
	require.NoError(t, err)
	assert.False(t, o.Active, "apply now cancels the unlock")
	assert.NotContains(t, env.activityNames(t), domain.OverrideActivityName)

	require.NoError(t, env.Service.RemoveShields(env.ctx))
	assert.True(t, env.shield(t).IsEmpty())
}

func TestService_ReconcileNow(t *testing.T) {
	env := newTestEnv(t, fixtures.At(7, 0))
	env.selectGames(t)
	_, err := env.Service.SetSchedules(env.ctx, fixtures.MorningEvening())
	require.NoError(t, err)

	// the boundary was missed
	env.clock.Set(fixtures.At(20, 30))
	d, err := env.Service.ReconcileNow(env.ctx)
	require.NoError(t, err)
	assert.True(t, d.Applied)
	assert.True(t, d.Changed)
	assert.Equal(t, "Evening", d.Window)
}

func TestService_MonitorStatus(t *testing.T) {
	env := newTestEnv(t, fixtures.At(8, 0))

	status, err := env.Service.MonitorStatus(env.ctx)
	require.NoError(t, err)
	assert.False(t, status.EverInitialized)
	assert.Nil(t, status.LastEvent)

	env.NewMonitor().OnThresholdReached(env.ctx, "x", "Morning")
	hb := domain.DaemonHeartbeat{PID: 4242, StartedAt: fixtures.At(7, 0).Unix(), LastHeartbeat: fixtures.At(8, 0).Unix()}
	require.NoError(t, domain.SaveRecord(env.ctx, env.store, domain.KeySchedulerHeartbeat, domain.KindDaemonHeartbeat, &hb))
	env.processes.procs[4242] = "shieldmon"

	env.clock.Advance(7 * time.Minute)
	status, err = env.Service.MonitorStatus(env.ctx)
	require.NoError(t, err)
	assert.True(t, status.EverInitialized)
	require.NotNil(t, status.LastEvent)
	assert.Equal(t, domain.EventThresholdReached, status.LastEvent.Event)
	assert.Equal(t, 7, status.LastEventAgeMinutes)
	assert.Equal(t, 4242, status.SchedulerPID)
	assert.True(t, status.SchedulerAlive)

	delete(env.processes.procs, 4242)
	status, err = env.Service.MonitorStatus(env.ctx)
	require.NoError(t, err)
	assert.False(t, status.SchedulerAlive)
}
