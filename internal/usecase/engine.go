package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// EngineDeps are the infrastructure pieces the engine runs on.
type EngineDeps struct {
	Store      domain.SharedStore
	Surface    domain.EnforcementSurface
	Activities domain.ActivityCenter
	Authorizer domain.Authorizer
	Presenter  domain.NotificationPresenter
	Processes  domain.ProcessManager
	Clock      domain.Clock
	Logger     *zap.Logger
}

// EngineConfig holds engine tunables.
type EngineConfig struct {
	Schedules   ScheduleRegistryConfig
	MaxOverride time.Duration
}

// DefaultEngineConfig returns the default tunables.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Schedules:   DefaultScheduleRegistryConfig(),
		MaxOverride: DefaultMaxOverride,
	}
}

// Engine wires every component over one shared store.
type Engine struct {
	Selections  *SelectionStore
	Enforcer    *ShieldEnforcer
	Reconciler  *Reconciler
	Registry    *ScheduleRegistry
	Override    *OverrideController
	Events      *EventChannel
	Interaction *InteractionHandler
	Reactor     *Reactor
	Service     *Service
	Sweeper     *Sweeper

	deps EngineDeps
	auth AuthGate
}

// NewEngine builds the component graph.
func NewEngine(deps EngineDeps, config EngineConfig) *Engine {
	log := deps.Logger
	e := &Engine{deps: deps}

	e.Selections = NewSelectionStore(deps.Store, log.Named("selection"))
	e.Events = NewEventChannel(deps.Store, deps.Clock, log.Named("events"))
	e.Enforcer = NewShieldEnforcer(deps.Surface, e.Selections, deps.Clock, log.Named("shield"))
	e.auth = NewAuthGate(deps.Authorizer)
	e.Reconciler = NewReconciler(deps.Store, deps.Activities, e.Selections, e.Enforcer, e.auth,
		deps.Clock, log.Named("reconcile"))
	e.Registry = NewScheduleRegistry(deps.Store, deps.Activities, e.Enforcer, e.Reconciler, e.Events,
		deps.Clock, config.Schedules, log.Named("schedules"))
	e.Override = NewOverrideController(deps.Store, deps.Activities, e.Enforcer, e.Reconciler, e.Registry,
		e.Events, deps.Clock, config.MaxOverride, log.Named("override"))
	e.Interaction = NewInteractionHandler(e.Events, deps.Presenter, deps.Clock, log.Named("interaction"))
	e.Reactor = NewReactor(
		func() BoundaryHandler { return e.NewMonitor() },
		func() ActionHandler { return e.Interaction },
		log.Named("reactor"),
	)
	if deps.Processes != nil {
		e.Sweeper = NewSweeper(deps.Surface, deps.Processes, e.auth, deps.Clock, log.Named("sweep"))
	}
	e.Service = &Service{
		auth:       deps.Authorizer,
		store:      deps.Store,
		selections: e.Selections,
		enforcer:   e.Enforcer,
		reconciler: e.Reconciler,
		registry:   e.Registry,
		override:   e.Override,
		events:     e.Events,
		activities: deps.Activities,
		processes:  deps.Processes,
		clock:      deps.Clock,
		logger:     log.Named("service"),
	}
	return e
}

// NewMonitor returns a fresh boundary monitor.
func (e *Engine) NewMonitor() *Monitor {
	return NewMonitor(e.Selections, e.Enforcer, e.Reconciler, e.Registry, e.deps.Activities, e.Events,
		e.auth, e.deps.Logger.Named("monitor"))
}
