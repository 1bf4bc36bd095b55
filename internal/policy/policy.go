// Package policy holds the pure rules of shieldmon: window arithmetic,
// schedule validation and the named target presets users can select.
// Each preset (Steam, Dota2) is a strategy describing what to restrict.
package policy

import (
	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// TargetPreset defines a named bundle of restriction targets.
type TargetPreset interface {
	// ID returns unique identifier (e.g., "steam", "dota2").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// ProcessPatterns returns application glob patterns.
	// Patterns are matched case-insensitively against process names.
	ProcessPatterns() []string

	// Domains returns network domains associated with the preset.
	Domains() []string
}

// ToSelection converts presets into a single normalized selection.
func ToSelection(presets ...TargetPreset) domain.TargetSelection {
	var sel domain.TargetSelection
	for _, p := range presets {
		sel.Applications = append(sel.Applications, p.ProcessPatterns()...)
		sel.Domains = append(sel.Domains, p.Domains()...)
	}
	return sel.Normalize()
}
