package fixtures

import "github.com/eliteGoblin/focusd/shieldmon/internal/domain"

// Window builds an enabled repeating schedule from hh:mm bounds.
func Window(name string, startH, startM, endH, endM int) domain.Schedule {
	return domain.Schedule{
		Name:        name,
		StartMinute: startH*60 + startM,
		EndMinute:   endH*60 + endM,
		Enabled:     true,
		Repeats:     true,
	}
}

// MorningEvening is the two-window weekday plan: 08:00-09:00 and 20:00-22:00.
func MorningEvening() []domain.Schedule {
	return []domain.Schedule{
		Window("Morning", 8, 0, 9, 0),
		Window("Evening", 20, 0, 22, 0),
	}
}

// GamesSelection restricts the usual game launchers and one category.
func GamesSelection() domain.TargetSelection {
	return domain.TargetSelection{
		Applications: []string{"steam", "steam_osx", "dota2"},
		Categories:   []string{"games"},
		Domains:      []string{"store.steampowered.com"},
	}
}
