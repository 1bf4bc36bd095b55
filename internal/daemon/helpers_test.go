package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/infra"
	"github.com/eliteGoblin/focusd/shieldmon/internal/usecase"
	"github.com/eliteGoblin/focusd/shieldmon/test/fixtures"
)

// recordingInvoker implements Invoker for testing
type recordingInvoker struct {
	mu     sync.Mutex
	events []usecase.BoundaryEvent
	err    error
}

func (r *recordingInvoker) Invoke(_ context.Context, ev usecase.BoundaryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingInvoker) received() []usecase.BoundaryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]usecase.BoundaryEvent(nil), r.events...)
}

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	running map[int]bool
}

func (m *mockProcessManager) FindByName(func(string) bool) ([]int, error) { return nil, nil }
func (m *mockProcessManager) Kill(int) error { return nil }
func (m *mockProcessManager) IsRunning(pid int) bool { return m.running[pid] }
func (m *mockProcessManager) GetCurrentPID() int { return 1 }

// mockLaunchAgent implements domain.LaunchAgentManager for testing
type mockLaunchAgent struct {
	installed   bool
	outdated    bool
	installedAt []string
}

func (m *mockLaunchAgent) Install(execPath string) error {
	m.installed = true
	m.outdated = false
	m.installedAt = append(m.installedAt, execPath)
	return nil
}

func (m *mockLaunchAgent) Uninstall() error {
	m.installed = false
	return nil
}

func (m *mockLaunchAgent) IsInstalled() bool { return m.installed }
func (m *mockLaunchAgent) GetPlistPath() string { return "/tmp/test.plist" }
func (m *mockLaunchAgent) NeedsUpdate(string) bool { return m.outdated }

// switchAuthorizer implements domain.Authorizer for testing
type switchAuthorizer struct {
	status domain.AuthorizationStatus
}

func (a *switchAuthorizer) Status(context.Context) (domain.AuthorizationStatus, error) {
	return a.status, nil
}

func (a *switchAuthorizer) Request(context.Context, bool) (domain.AuthorizationStatus, error) {
	return a.status, nil
}

type schedulerEnv struct {
	*usecase.Engine
	ctx        context.Context
	clock      *fixtures.ManualClock
	store      *infra.MemStore
	activities *infra.StoreActivityCenter
	invoker    *recordingInvoker
	agent      *mockLaunchAgent
	auth       *switchAuthorizer
	scheduler  *Scheduler
}

func newSchedulerEnv(t *testing.T, now time.Time, config SchedulerConfig) *schedulerEnv {
	t.Helper()
	clock := fixtures.NewManualClock(now)
	store := infra.NewMemStore()
	activities := infra.NewActivityCenter(store, clock, infra.DefaultMinimumInterval, zap.NewNop())
	auth := &switchAuthorizer{status: domain.AuthApproved}
	engine := usecase.NewEngine(usecase.EngineDeps{
		Store:      store,
		Surface:    infra.NewStoreSurface(store),
		Activities: activities,
		Authorizer: auth,
		Clock:      clock,
		Logger:     zap.NewNop(),
	}, usecase.DefaultEngineConfig())
	t.Cleanup(engine.Override.Stop)

	env := &schedulerEnv{
		Engine:     engine,
		ctx:        context.Background(),
		clock:      clock,
		store:      store,
		activities: activities,
		invoker:    &recordingInvoker{},
		agent:      &mockLaunchAgent{installed: true},
		auth:       auth,
	}
	env.scheduler = NewScheduler(config, SchedulerDeps{
		Store:       store,
		Activities:  activities,
		Reconciler:  engine.Reconciler,
		Override:    engine.Override,
		Sweeper:     engine.Sweeper,
		Events:      engine.Events,
		Invoker:     env.invoker,
		LaunchAgent: env.agent,
		Clock:       clock,
		Logger:      zap.NewNop(),
	})
	return env
}
