package usecase

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/infra"
	"github.com/eliteGoblin/focusd/shieldmon/test/fixtures"
)

// fakeAuthorizer implements domain.Authorizer for testing
type fakeAuthorizer struct {
	status domain.AuthorizationStatus
}

func (a *fakeAuthorizer) Status(context.Context) (domain.AuthorizationStatus, error) {
	return a.status, nil
}

func (a *fakeAuthorizer) Request(_ context.Context, approve bool) (domain.AuthorizationStatus, error) {
	if approve {
		a.status = domain.AuthApproved
	} else {
		a.status = domain.AuthDenied
	}
	return a.status, nil
}

// recordingPresenter implements domain.NotificationPresenter for testing
type recordingPresenter struct {
	mu    sync.Mutex
	shown []domain.Notification
	err   error
}

func (p *recordingPresenter) Present(n domain.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.shown = append(p.shown, n)
	return nil
}

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	procs      map[int]string
	self       int
	findErr    error
	killErr    error
	killedPIDs []int
}

func (m *mockProcessManager) FindByName(match func(name string) bool) ([]int, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var found []int
	for pid, name := range m.procs {
		if match(name) {
			found = append(found, pid)
		}
	}
	sort.Ints(found)
	return found, nil
}

func (m *mockProcessManager) Kill(pid int) error {
	if m.killErr != nil {
		return m.killErr
	}
	m.killedPIDs = append(m.killedPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	_, ok := m.procs[pid]
	return ok
}

func (m *mockProcessManager) GetCurrentPID() int {
	return m.self
}

type testEnv struct {
	*Engine
	ctx        context.Context
	clock      *fixtures.ManualClock
	store      *infra.MemStore
	activities *infra.StoreActivityCenter
	auth       *fakeAuthorizer
	presenter  *recordingPresenter
	processes  *mockProcessManager
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	return newTestEnvWithConfig(t, now, DefaultEngineConfig())
}

func newTestEnvWithConfig(t *testing.T, now time.Time, config EngineConfig) *testEnv {
	t.Helper()
	clock := fixtures.NewManualClock(now)
	store := infra.NewMemStore()
	activities := infra.NewActivityCenter(store, clock, infra.DefaultMinimumInterval, zap.NewNop())
	env := &testEnv{
		ctx:        context.Background(),
		clock:      clock,
		store:      store,
		activities: activities,
		auth:       &fakeAuthorizer{status: domain.AuthApproved},
		presenter:  &recordingPresenter{},
		processes:  &mockProcessManager{procs: map[int]string{}, self: 1},
	}
	env.Engine = NewEngine(EngineDeps{
		Store:      store,
		Surface:    infra.NewStoreSurface(store),
		Activities: activities,
		Authorizer: env.auth,
		Presenter:  env.presenter,
		Processes:  env.processes,
		Clock:      clock,
		Logger:     zap.NewNop(),
	}, config)
	return env
}

func (e *testEnv) shield(t *testing.T) domain.ShieldState {
	t.Helper()
	state, err := e.Enforcer.State(e.ctx)
	require.NoError(t, err)
	return state
}

func (e *testEnv) history(t *testing.T) []string {
	t.Helper()
	records, err := e.Events.ReadHistory(e.ctx)
	require.NoError(t, err)
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Event
	}
	return names
}

func (e *testEnv) activityNames(t *testing.T) []string {
	t.Helper()
	list, err := e.activities.Activities(e.ctx)
	require.NoError(t, err)
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.Name
	}
	sort.Strings(names)
	return names
}

func (e *testEnv) selectGames(t *testing.T) domain.TargetSelection {
	t.Helper()
	sel := fixtures.GamesSelection()
	require.NoError(t, e.Selections.Save(e.ctx, sel))
	return sel.Normalize()
}
