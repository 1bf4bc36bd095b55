package policy

import (
	"time"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// Window is a daily minute-of-day interval [Start, End).
// End < Start wraps past midnight.
type Window struct {
	Start int
	End   int
}

// WindowOf returns the window of a schedule.
func WindowOf(s domain.Schedule) Window {
	return Window{Start: s.StartMinute, End: s.EndMinute}
}

// Contains reports whether minute m falls inside the window.
func (w Window) Contains(m int) bool {
	if w.Start <= w.End {
		return w.Start <= m && m < w.End
	}
	return m >= w.Start || m < w.End
}

// ContainsTime checks t's minute-of-day in t's own location.
func (w Window) ContainsTime(t time.Time) bool {
	return w.Contains(MinuteOfDay(t))
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	mins := w.End - w.Start
	if mins <= 0 {
		mins += domain.MinutesPerDay
	}
	return time.Duration(mins) * time.Minute
}

// Wraps reports whether the window crosses midnight.
func (w Window) Wraps() bool {
	return w.End < w.Start
}

// MinuteOfDay returns t's minute of the day.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ActivityActive reports whether a registered activity is active at now.
// Repeating activities use their daily window; one-shot ones their absolute span.
func ActivityActive(a domain.Activity, now time.Time) bool {
	if a.OneShot {
		return !now.Before(a.StartAt) && now.Before(a.EndAt)
	}
	return Window{Start: a.StartMinute, End: a.EndMinute}.ContainsTime(now)
}

// CurrentStart returns the start of the occurrence of w that contains now.
// Only meaningful when w.ContainsTime(now).
func (w Window) CurrentStart(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := midnight.Add(time.Duration(w.Start) * time.Minute)
	if start.After(now) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}
