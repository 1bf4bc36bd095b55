package policy

// Dota2Preset restricts Dota 2. The game runs through Steam but has its own
// binaries, so it can be selected without blocking the client.
type Dota2Preset struct{}

// NewDota2Preset creates the Dota 2 preset.
func NewDota2Preset() *Dota2Preset {
	return &Dota2Preset{}
}

func (p *Dota2Preset) ID() string {
	return "dota2"
}

func (p *Dota2Preset) Name() string {
	return "Dota 2"
}

func (p *Dota2Preset) ProcessPatterns() []string {
	return []string{
		"dota2",
		"dota_osx64",
		"dota 2",
		"dota2_launcher",
	}
}

func (p *Dota2Preset) Domains() []string {
	return []string{"dota2.com"}
}

var _ TargetPreset = (*Dota2Preset)(nil)
