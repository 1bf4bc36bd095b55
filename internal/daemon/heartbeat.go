package daemon

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// Heartbeat maintains the scheduler liveness record.
type Heartbeat struct {
	store     domain.SharedStore
	clock     domain.Clock
	version   string
	pid       int
	startedAt time.Time
}

// NewHeartbeat creates a heartbeat writer for the current process.
func NewHeartbeat(store domain.SharedStore, clock domain.Clock, version string) *Heartbeat {
	return &Heartbeat{
		store:     store,
		clock:     clock,
		version:   version,
		pid:       os.Getpid(),
		startedAt: clock.Now(),
	}
}

// PID returns the PID written to the record.
func (h *Heartbeat) PID() int {
	return h.pid
}

// Beat writes the liveness record.
func (h *Heartbeat) Beat(ctx context.Context) error {
	rec := domain.DaemonHeartbeat{
		PID:           h.pid,
		StartedAt:     h.startedAt.Unix(),
		LastHeartbeat: h.clock.Now().Unix(),
		Version:       h.version,
	}
	return domain.SaveRecord(ctx, h.store, domain.KeySchedulerHeartbeat, domain.KindDaemonHeartbeat, &rec)
}

// ReadHeartbeat returns the last liveness record, or false if none was written.
func ReadHeartbeat(ctx context.Context, store domain.SharedStore) (domain.DaemonHeartbeat, bool, error) {
	var hb domain.DaemonHeartbeat
	found, err := domain.LoadRecord(ctx, store, domain.KeySchedulerHeartbeat, domain.KindDaemonHeartbeat, &hb)
	if err != nil {
		return domain.DaemonHeartbeat{}, false, fmt.Errorf("failed to read heartbeat: %w", err)
	}
	return hb, found, nil
}

// IsAlive reports whether a scheduler is running and has beaten within staleAfter.
func IsAlive(ctx context.Context, store domain.SharedStore, pm domain.ProcessManager, clock domain.Clock, staleAfter time.Duration) bool {
	hb, found, err := ReadHeartbeat(ctx, store)
	if err != nil || !found {
		return false
	}
	if !pm.IsRunning(hb.PID) {
		return false
	}
	return clock.Now().Sub(time.Unix(hb.LastHeartbeat, 0)) <= staleAfter
}
