package policy

// SteamPreset restricts the Steam client and store.
type SteamPreset struct{}

// NewSteamPreset creates the Steam preset.
func NewSteamPreset() *SteamPreset {
	return &SteamPreset{}
}

func (p *SteamPreset) ID() string {
	return "steam"
}

func (p *SteamPreset) Name() string {
	return "Steam"
}

// ProcessPatterns returns Steam process names on macOS and Linux.
func (p *SteamPreset) ProcessPatterns() []string {
	return []string{
		"steam",
		"steam_osx",
		"steamwebhelper",
		"steam helper*",
	}
}

func (p *SteamPreset) Domains() []string {
	return []string{
		"steampowered.com",
		"steamcommunity.com",
		"steamstatic.com",
	}
}

var _ TargetPreset = (*SteamPreset)(nil)
