package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/config"
	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/infra"
	"github.com/eliteGoblin/focusd/shieldmon/internal/usecase"
)

// app is one process's view of shieldmon: configuration, the shared store
// and the component graph built over it.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *infra.SQLStore
	activities *infra.StoreActivityCenter
	auth       domain.Authorizer
	processes  domain.ProcessManager
	clock      domain.Clock
	*usecase.Engine
}

// openApp loads configuration and opens the store. background selects file
// logging for daemon, monitor and shield-action contexts.
func openApp(background bool) (*app, error) {
	cfg, err := config.Load(configFlag, dataDirFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := config.NewLogger(cfg, background)

	var key []byte
	if cfg.Store.Driver == infra.DriverSQLCipher {
		provider, err := infra.NewKeyProvider(cfg.Store.KeySource, cfg.DataDir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		key, err = infra.EnsureKey(provider)
		if err != nil {
			return nil, fmt.Errorf("failed to get store key: %w", err)
		}
	}

	store, err := infra.NewSQLStore(cfg.StoreOptions(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	clock := infra.SystemClock{}
	processes := infra.NewProcessManager()
	auth := infra.NewAuthorizer(store, infra.NewPlatformChecker(), clock, logger.Named("auth"))
	activities := infra.NewActivityCenter(store, clock, cfg.Backend.MinimumInterval, logger.Named("backend"))

	engine := usecase.NewEngine(usecase.EngineDeps{
		Store:      store,
		Surface:    infra.NewStoreSurface(store),
		Activities: activities,
		Authorizer: auth,
		Presenter:  infra.NewDesktopNotifier(logger.Named("notify")),
		Processes:  processes,
		Clock:      clock,
		Logger:     logger,
	}, cfg.EngineConfig())

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		activities: activities,
		auth:       auth,
		processes:  processes,
		clock:      clock,
		Engine:     engine,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// withApp runs fn against a freshly opened app.
func withApp(background bool, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(background)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
