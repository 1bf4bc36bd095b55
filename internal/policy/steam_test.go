package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteamPreset_ID(t *testing.T) {
	p := NewSteamPreset()
	assert.Equal(t, "steam", p.ID())
	assert.Equal(t, "Steam", p.Name())
}

func TestSteamPreset_ProcessPatterns(t *testing.T) {
	patterns := NewSteamPreset().ProcessPatterns()
	assert.Contains(t, patterns, "steam")
	assert.Contains(t, patterns, "steamwebhelper")

	// Sweeper matches lowercased names, so patterns must be lowercase.
	for _, p := range patterns {
		assert.Equal(t, strings.ToLower(p), p)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"dota2", "steam"}, r.List())

	presets, err := r.Resolve("steam", "dota2")
	require.NoError(t, err)
	sel := ToSelection(presets...)
	assert.Contains(t, sel.Applications, "steam")
	assert.Contains(t, sel.Applications, "dota2")
	assert.Contains(t, sel.Domains, "steampowered.com")
	assert.Empty(t, sel.Categories)

	_, err = r.Resolve("minecraft")
	assert.Error(t, err)
}

func TestRegistryWithPresets(t *testing.T) {
	r := NewRegistryWithPresets(NewDota2Preset())
	_, ok := r.Get("steam")
	assert.False(t, ok)
	p, ok := r.Get("dota2")
	require.True(t, ok)
	assert.Equal(t, "Dota 2", p.Name())
}
