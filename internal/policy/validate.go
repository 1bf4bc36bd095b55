package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// DefaultMinimumWindow is the shortest window the scheduling backend accepts.
const DefaultMinimumWindow = 15 * time.Minute

// Rejection is one schedule dropped from a batch.
type Rejection struct {
	Schedule domain.Schedule
	Reason   error
}

// ValidateSchedule checks a single entry. Errors wrap domain.ErrScheduleRejected.
func ValidateSchedule(s domain.Schedule, minWindow time.Duration) error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return fmt.Errorf("%w: empty name", domain.ErrScheduleRejected)
	}
	if domain.IsOverrideActivity(name) || domain.IsOverrideActivity(s.ActivityName()) {
		return fmt.Errorf("%w: %q uses reserved suffix %q", domain.ErrScheduleRejected, name, domain.OverrideSuffix)
	}
	if !validMinute(s.StartMinute) || !validMinute(s.EndMinute) {
		return fmt.Errorf("%w: %q minutes out of range [0,%d)", domain.ErrScheduleRejected, name, domain.MinutesPerDay)
	}
	if s.StartMinute == s.EndMinute {
		return fmt.Errorf("%w: %q starts and ends at %s", domain.ErrScheduleRejected, name, domain.FormatMinute(s.StartMinute))
	}
	if d := WindowOf(s).Duration(); d < minWindow {
		return fmt.Errorf("%w: %q lasts %s, minimum is %s", domain.ErrScheduleRejected, name, d, minWindow)
	}
	return nil
}

// ValidateBatch splits a batch into accepted entries and rejections.
// Names must be unique by activity name; later duplicates are rejected.
func ValidateBatch(list []domain.Schedule, minWindow time.Duration) ([]domain.Schedule, []Rejection) {
	accepted := make([]domain.Schedule, 0, len(list))
	var rejected []Rejection
	seen := make(map[string]bool, len(list))

	for _, s := range list {
		s.Name = strings.TrimSpace(s.Name)
		if err := ValidateSchedule(s, minWindow); err != nil {
			rejected = append(rejected, Rejection{Schedule: s, Reason: err})
			continue
		}
		key := s.ActivityName()
		if seen[key] {
			rejected = append(rejected, Rejection{
				Schedule: s,
				Reason:   fmt.Errorf("%w: duplicate name %q", domain.ErrScheduleRejected, s.Name),
			})
			continue
		}
		seen[key] = true
		accepted = append(accepted, s)
	}
	return accepted, rejected
}

func validMinute(m int) bool {
	return m >= 0 && m < domain.MinutesPerDay
}

// ParseClock parses "HH:MM" into a minute of day.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseWindowSpec parses "Name=HH:MM-HH:MM" into an enabled repeating schedule.
func ParseWindowSpec(spec string) (domain.Schedule, error) {
	name, span, ok := strings.Cut(spec, "=")
	if !ok {
		return domain.Schedule{}, fmt.Errorf("invalid window %q: want Name=HH:MM-HH:MM", spec)
	}
	from, to, ok := strings.Cut(span, "-")
	if !ok {
		return domain.Schedule{}, fmt.Errorf("invalid window %q: want Name=HH:MM-HH:MM", spec)
	}
	start, err := ParseClock(from)
	if err != nil {
		return domain.Schedule{}, err
	}
	end, err := ParseClock(to)
	if err != nil {
		return domain.Schedule{}, err
	}
	return domain.Schedule{
		Name:        strings.TrimSpace(name),
		StartMinute: start,
		EndMinute:   end,
		Enabled:     true,
		Repeats:     true,
	}, nil
}
