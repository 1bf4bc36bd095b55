// Package daemon implements the scheduler daemon that plays the scheduling
// backend: it fires window boundaries for registered activities.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/usecase"
)

// SchedulerConfig holds scheduler daemon configuration.
type SchedulerConfig struct {
	ResyncInterval     time.Duration // How often to re-read registrations without a file event
	HeartbeatInterval  time.Duration // How often to update heartbeat
	SweepInterval      time.Duration // How often to kill shielded processes
	PlistCheckInterval time.Duration // How often to check the LaunchAgent plist
	DebounceInterval   time.Duration // Quiet time after a store write before resyncing
	InvokeTimeout      time.Duration // Upper bound for one boundary callback
	StorePath          string        // Database file to watch; empty disables watching
	ExecPath           string        // Binary the LaunchAgent should run
	Version            string
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ResyncInterval:     time.Minute,
		HeartbeatInterval:  30 * time.Second,
		SweepInterval:      15 * time.Second,
		PlistCheckInterval: 60 * time.Second,
		DebounceInterval:   250 * time.Millisecond,
		InvokeTimeout:      30 * time.Second,
	}
}

// registration is the set of cron entries backing one activity.
type registration struct {
	fingerprint string
	entries     []cron.EntryID
}

// Scheduler turns the persisted activity list into cron triggers and
// delivers boundary events through an Invoker.
type Scheduler struct {
	config      SchedulerConfig
	store       domain.SharedStore
	activities  domain.ActivityCenter
	reconciler  *usecase.Reconciler
	override    *usecase.OverrideController
	sweeper     *usecase.Sweeper
	events      *usecase.EventChannel
	invoker     Invoker
	heartbeat   *Heartbeat
	launchAgent domain.LaunchAgentManager
	clock       domain.Clock
	logger      *zap.Logger

	cron *cron.Cron

	mu           sync.Mutex
	registered   map[string]registration
	lastRevision int64
	synced       bool
}

// SchedulerDeps are the collaborators of a Scheduler. Sweeper, Events and
// LaunchAgent may be nil.
type SchedulerDeps struct {
	Store       domain.SharedStore
	Activities  domain.ActivityCenter
	Reconciler  *usecase.Reconciler
	Override    *usecase.OverrideController
	Sweeper     *usecase.Sweeper
	Events      *usecase.EventChannel
	Invoker     Invoker
	LaunchAgent domain.LaunchAgentManager
	Clock       domain.Clock
	Logger      *zap.Logger
}

// NewScheduler creates a new scheduler daemon.
func NewScheduler(config SchedulerConfig, deps SchedulerDeps) *Scheduler {
	loc := deps.Clock.Now().Location()
	return &Scheduler{
		config:      config,
		store:       deps.Store,
		activities:  deps.Activities,
		reconciler:  deps.Reconciler,
		override:    deps.Override,
		sweeper:     deps.Sweeper,
		events:      deps.Events,
		invoker:     deps.Invoker,
		heartbeat:   NewHeartbeat(deps.Store, deps.Clock, config.Version),
		launchAgent: deps.LaunchAgent,
		clock:       deps.Clock,
		logger:      deps.Logger,
		cron:        cron.New(cron.WithLocation(loc)),
		registered:  make(map[string]registration),
	}
}

// Run starts the scheduler loop.
// This blocks until context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.heartbeat.Beat(ctx); err != nil {
		return fmt.Errorf("failed to write heartbeat: %w", err)
	}
	s.logger.Info("scheduler daemon started", zap.Int("pid", s.heartbeat.PID()))

	// Catch up on anything registered while we were down
	if _, err := s.Sync(ctx, true); err != nil {
		s.logger.Error("initial sync failed", zap.Error(err))
	}
	s.checkOverride(ctx)
	s.ensurePlistInstalled()
	s.sweep(ctx)

	s.cron.Start()
	defer func() {
		<-s.cron.Stop().Done()
		if s.override != nil {
			s.override.Stop()
		}
	}()

	wake, closeWatch := s.watchStore()
	defer closeWatch()

	resyncTicker := time.NewTicker(s.config.ResyncInterval)
	heartbeatTicker := time.NewTicker(s.config.HeartbeatInterval)
	sweepTicker := time.NewTicker(s.config.SweepInterval)
	plistCheckTicker := time.NewTicker(s.config.PlistCheckInterval)

	defer func() {
		resyncTicker.Stop()
		heartbeatTicker.Stop()
		sweepTicker.Stop()
		plistCheckTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler daemon stopping")
			return ctx.Err()

		case <-wake:
			s.resync(ctx, false)

		case <-resyncTicker.C:
			s.resync(ctx, false)
			s.checkOverride(ctx)

		case <-heartbeatTicker.C:
			if err := s.heartbeat.Beat(ctx); err != nil {
				s.logger.Warn("failed to update heartbeat", zap.Error(err))
			}

		case <-sweepTicker.C:
			s.sweep(ctx)

		case <-plistCheckTicker.C:
			s.ensurePlistInstalled()
		}
	}
}

// Sync rebuilds cron triggers from the registration list. Without force it
// returns early when the list has not been written since the last sync.
// It reports whether any registration changed.
func (s *Scheduler) Sync(ctx context.Context, force bool) (bool, error) {
	rev, err := s.store.Revision(ctx, domain.KeyActivities)
	if err != nil {
		return false, fmt.Errorf("failed to read revision: %w", err)
	}

	s.mu.Lock()
	if s.synced && !force && rev == s.lastRevision {
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	list, err := s.activities.Activities(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list activities: %w", err)
	}

	desired := make(map[string]domain.Activity, len(list))
	for _, a := range list {
		desired[a.Name] = a
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for name, reg := range s.registered {
		a, ok := desired[name]
		if ok && a.Fingerprint() == reg.fingerprint {
			continue
		}
		for _, id := range reg.entries {
			s.cron.Remove(id)
		}
		delete(s.registered, name)
		changed = true
		s.logger.Info("triggers removed", zap.String("activity", name))
	}

	for name, a := range desired {
		if _, ok := s.registered[name]; ok {
			continue
		}
		entries, err := s.schedule(a)
		if err != nil {
			s.logger.Warn("failed to schedule activity",
				zap.String("activity", name),
				zap.Error(err))
			continue
		}
		s.registered[name] = registration{fingerprint: a.Fingerprint(), entries: entries}
		changed = true
		s.logger.Info("triggers added",
			zap.String("activity", name),
			zap.Bool("one_shot", a.OneShot))
	}

	s.lastRevision = rev
	s.synced = true
	return changed, nil
}

// Registered returns the names of activities that currently have triggers.
func (s *Scheduler) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.registered))
	for name := range s.registered {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) schedule(a domain.Activity) ([]cron.EntryID, error) {
	start := s.job(usecase.BoundaryEvent{Kind: usecase.BoundaryStart, Activity: a.Name})
	end := s.job(usecase.BoundaryEvent{Kind: usecase.BoundaryEnd, Activity: a.Name})

	if a.OneShot {
		var ids []cron.EntryID
		now := s.clock.Now()
		if a.StartAt.After(now) {
			ids = append(ids, s.cron.Schedule(onceSchedule{at: a.StartAt}, start))
		}
		ids = append(ids, s.cron.Schedule(onceSchedule{at: a.EndAt}, end))
		return ids, nil
	}

	startID, err := s.cron.AddJob(dailySpec(a.StartMinute), start)
	if err != nil {
		return nil, err
	}
	endID, err := s.cron.AddJob(dailySpec(a.EndMinute), end)
	if err != nil {
		s.cron.Remove(startID)
		return nil, err
	}
	return []cron.EntryID{startID, endID}, nil
}

func (s *Scheduler) job(ev usecase.BoundaryEvent) cron.Job {
	return cron.FuncJob(func() {
		s.Fire(context.Background(), ev)
	})
}

// Fire delivers one boundary event through the invoker.
func (s *Scheduler) Fire(ctx context.Context, ev usecase.BoundaryEvent) {
	if s.config.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.InvokeTimeout)
		defer cancel()
	}

	s.logger.Info("boundary fired",
		zap.String("kind", string(ev.Kind)),
		zap.String("activity", ev.Activity))
	if err := s.invoker.Invoke(ctx, ev); err != nil {
		s.logger.Error("boundary delivery failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("activity", ev.Activity),
			zap.Error(err))
	}
}

// resync picks up registration changes and enforces a window that is
// already active, since its start trigger will not fire until tomorrow.
func (s *Scheduler) resync(ctx context.Context, force bool) {
	changed, err := s.Sync(ctx, force)
	if err != nil {
		if errors.Is(err, domain.ErrStorageDecode) {
			s.logger.Warn("activity list unreadable, keeping current triggers", zap.Error(err))
			return
		}
		s.logger.Error("sync failed", zap.Error(err))
		return
	}
	if !changed || s.reconciler == nil {
		return
	}
	d, err := s.reconciler.Reconcile(ctx, "scheduler")
	if errors.Is(err, domain.ErrAuthorizationDenied) {
		s.logger.Warn("enforcement not authorized, shield left unchanged")
		if s.events != nil {
			if err := s.events.AppendEvent(ctx, domain.EventAuthorizationDenied, "scheduler"); err != nil {
				s.logger.Warn("failed to record event", zap.Error(err))
			}
		}
		return
	}
	if err != nil {
		s.logger.Warn("reconcile after sync failed", zap.Error(err))
		return
	}
	if d.Changed {
		s.logger.Info("shield caught up",
			zap.Bool("applied", d.Applied),
			zap.String("reason", d.Reason))
	}
}

// checkOverride arms the unlock timer and relocks an unlock that ran out
// while the daemon was down.
func (s *Scheduler) checkOverride(ctx context.Context) {
	if s.override == nil {
		return
	}
	expired, err := s.override.ExpireIfDue(ctx)
	if errors.Is(err, domain.ErrAuthorizationDenied) {
		s.logger.Debug("unlock expiry waits for authorization")
		return
	}
	if err != nil {
		s.logger.Warn("override expiry check failed", zap.Error(err))
		return
	}
	if expired {
		s.logger.Info("expired unlock relocked")
		return
	}
	o, err := s.reconciler.Override(ctx)
	if err != nil {
		s.logger.Warn("failed to read override", zap.Error(err))
		return
	}
	s.override.Arm(o)
}

func (s *Scheduler) sweep(ctx context.Context) {
	if s.sweeper == nil {
		return
	}
	result, err := s.sweeper.Sweep(ctx)
	if errors.Is(err, domain.ErrAuthorizationDenied) {
		s.logger.Debug("sweep skipped, enforcement not authorized")
		return
	}
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return
	}
	if len(result.KilledPIDs) > 0 {
		s.logger.Info("sweep completed",
			zap.Int("processes_killed", len(result.KilledPIDs)),
			zap.Int("skipped_targets", len(result.Skipped)))
	}
}

// ensurePlistInstalled restores a deleted or outdated LaunchAgent plist.
func (s *Scheduler) ensurePlistInstalled() {
	if s.launchAgent == nil || s.config.ExecPath == "" {
		return
	}
	if s.launchAgent.IsInstalled() && !s.launchAgent.NeedsUpdate(s.config.ExecPath) {
		return
	}
	s.logger.Info("LaunchAgent plist missing or outdated, reinstalling")
	if err := s.launchAgent.Install(s.config.ExecPath); err != nil {
		s.logger.Error("failed to restore LaunchAgent plist", zap.Error(err))
	}
}

// watchStore signals on the returned channel shortly after the database
// files change. Without a watcher the resync ticker is the only trigger.
func (s *Scheduler) watchStore() (<-chan struct{}, func()) {
	wake := make(chan struct{}, 1)
	if s.config.StorePath == "" {
		return wake, func() {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("file watching unavailable", zap.Error(err))
		return wake, func() {}
	}
	dir, base := filepath.Split(s.config.StorePath)
	if err := watcher.Add(filepath.Clean(dir)); err != nil {
		s.logger.Warn("failed to watch data directory", zap.String("dir", dir), zap.Error(err))
		_ = watcher.Close()
		return wake, func() {}
	}

	done := make(chan struct{})
	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-done:
				if debounce != nil {
					debounce.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasPrefix(filepath.Base(ev.Name), base) || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(s.config.DebounceInterval, func() {
					select {
					case wake <- struct{}{}:
					default:
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}()

	return wake, func() {
		close(done)
		_ = watcher.Close()
	}
}

// dailySpec is a standard five-field cron spec firing at minute-of-day m.
func dailySpec(m int) string {
	return fmt.Sprintf("%d %d * * *", m%60, m/60)
}

// onceSchedule fires a single time at at.
type onceSchedule struct {
	at time.Time
}

// Next implements cron.Schedule. A zero time tells cron the entry is spent.
func (o onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}
