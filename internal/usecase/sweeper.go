// Package usecase contains application business logic.
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// Sweeper acts on the running system for the current shield: it kills
// processes matching shielded application patterns.
type Sweeper struct {
	surface        domain.EnforcementSurface
	processManager domain.ProcessManager
	auth           AuthGate
	clock          domain.Clock
	logger         *zap.Logger
}

// NewSweeper creates a process sweeper.
func NewSweeper(surface domain.EnforcementSurface, pm domain.ProcessManager, auth AuthGate, clock domain.Clock, logger *zap.Logger) *Sweeper {
	return &Sweeper{surface: surface, processManager: pm, auth: auth, clock: clock, logger: logger}
}

// Sweep runs the shield once. Categories and domains cannot be enforced on
// the process table and are reported as skipped. Without authorization
// nothing is killed and domain.ErrAuthorizationDenied is returned.
func (s *Sweeper) Sweep(ctx context.Context) (domain.SweepResult, error) {
	start := s.clock.Now()
	result := domain.SweepResult{
		KilledPIDs: make([]int, 0),
		ExecutedAt: start,
	}
	if err := s.auth.Require(ctx); err != nil {
		return result, err
	}

	state, err := s.surface.Read(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read shield: %w", err)
	}
	if state.IsEmpty() {
		return result, nil
	}

	for _, c := range state.Categories {
		result.Skipped = append(result.Skipped, domain.Target{Kind: domain.TargetCategory, ID: c})
	}
	for _, d := range state.Domains {
		result.Skipped = append(result.Skipped, domain.Target{Kind: domain.TargetDomain, ID: d})
	}

	patterns := make([]glob.Glob, 0, len(state.Applications))
	for _, app := range state.Applications {
		g, err := glob.Compile(strings.ToLower(app))
		if err != nil {
			s.logger.Warn("invalid application pattern",
				zap.String("pattern", app),
				zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}
		patterns = append(patterns, g)
	}
	if len(patterns) == 0 {
		return result, nil
	}

	pids, err := s.processManager.FindByName(func(name string) bool {
		for _, g := range patterns {
			if g.Match(name) {
				return true
			}
		}
		return false
	})
	if err != nil {
		s.logger.Warn("failed to find processes", zap.Error(err))
		result.Errors = append(result.Errors, err)
		return result, nil
	}

	self := s.processManager.GetCurrentPID()
	for _, pid := range pids {
		if pid == self {
			continue
		}
		if err := s.processManager.Kill(pid); err != nil {
			s.logger.Warn("failed to kill process",
				zap.Int("pid", pid),
				zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}
		s.logger.Info("killed process",
			zap.Int("pid", pid),
			zap.String("source", state.Source))
		result.KilledPIDs = append(result.KilledPIDs, pid)
	}

	result.DurationMs = s.clock.Now().Sub(start).Milliseconds()
	return result, nil
}
