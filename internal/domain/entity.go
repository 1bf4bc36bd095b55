// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MinutesPerDay bounds every minute-of-day value.
const MinutesPerDay = 24 * 60

// OverrideSuffix is reserved for the temporary unlock activity.
// No user schedule may carry it.
const OverrideSuffix = ".override"

// OverrideActivityName is the activity registered by the override controller.
const OverrideActivityName = "unlock" + OverrideSuffix

// TargetKind partitions restriction targets.
type TargetKind string

const (
	TargetApplication TargetKind = "application"
	TargetCategory    TargetKind = "category"
	TargetDomain      TargetKind = "domain"
)

// Target is one opaque restriction target.
type Target struct {
	Kind TargetKind
	ID   string
}

// TargetSelection is the set of targets the user chose to restrict.
// Replaced wholesale on every save.
type TargetSelection struct {
	Applications []string `json:"applications"`
	Categories   []string `json:"categories"`
	Domains      []string `json:"domains"`
}

// IsEmpty reports whether nothing is selected.
func (s TargetSelection) IsEmpty() bool {
	return len(s.Applications) == 0 && len(s.Categories) == 0 && len(s.Domains) == 0
}

// Count returns the total number of targets across kinds.
func (s TargetSelection) Count() int {
	return len(s.Applications) + len(s.Categories) + len(s.Domains)
}

// Summary returns per-kind counts.
func (s TargetSelection) Summary() SelectionSummary {
	return SelectionSummary{
		Applications: len(s.Applications),
		Categories:   len(s.Categories),
		Domains:      len(s.Domains),
	}
}

// Normalize trims, de-duplicates and sorts each kind so equal selections
// compare equal regardless of input order.
func (s TargetSelection) Normalize() TargetSelection {
	return TargetSelection{
		Applications: normalizeIDs(s.Applications),
		Categories:   normalizeIDs(s.Categories),
		Domains:      normalizeIDs(s.Domains),
	}
}

// Equal compares two normalized selections.
func (s TargetSelection) Equal(o TargetSelection) bool {
	return equalIDs(s.Applications, o.Applications) &&
		equalIDs(s.Categories, o.Categories) &&
		equalIDs(s.Domains, o.Domains)
}

// Validate implements Validator.
func (s TargetSelection) Validate() error { return nil }

func normalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SelectionSummary is the privacy-preserving view of a selection.
type SelectionSummary struct {
	Applications int `json:"applications"`
	Categories   int `json:"categories"`
	Domains      int `json:"domains"`
}

// Schedule is a named daily time window.
// EndMinute < StartMinute means the window wraps past midnight.
type Schedule struct {
	Name        string `json:"name"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Enabled     bool   `json:"enabled"`
	Repeats     bool   `json:"repeats"`
}

// ActivityName is the name the schedule is registered under with the
// scheduling backend.
func (s Schedule) ActivityName() string {
	return ActivityNameFor(s.Name)
}

// ActivityNameFor maps a display name to a backend activity name.
func ActivityNameFor(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// IsOverrideActivity reports whether an activity name denotes an override window.
func IsOverrideActivity(name string) bool {
	return strings.HasSuffix(name, OverrideSuffix)
}

// FormatMinute renders a minute-of-day as HH:MM.
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ScheduleList is the committed schedule set persisted by the registry.
type ScheduleList struct {
	Schedules   []Schedule `json:"schedules"`
	CommittedAt int64      `json:"committed_at"`
}

// Validate implements Validator.
func (l ScheduleList) Validate() error {
	for i, s := range l.Schedules {
		if s.Name == "" {
			return fmt.Errorf("schedule %d: missing name", i)
		}
	}
	return nil
}

// ShieldState is what is currently written on the enforcement surface.
type ShieldState struct {
	Applications []string `json:"applications"`
	Categories   []string `json:"categories"`
	Domains      []string `json:"domains"`
	Manual       bool     `json:"manual"`
	AppliedAt    int64    `json:"applied_at"`
	Source       string   `json:"source"`
}

// IsEmpty reports whether nothing is restricted.
func (s ShieldState) IsEmpty() bool {
	return len(s.Applications) == 0 && len(s.Categories) == 0 && len(s.Domains) == 0
}

// Targets returns the restricted set as a selection.
func (s ShieldState) Targets() TargetSelection {
	return TargetSelection{Applications: s.Applications, Categories: s.Categories, Domains: s.Domains}
}

// Validate implements Validator.
func (s ShieldState) Validate() error { return nil }

// OverrideWindow is a bounded temporary unlock.
// RestoreManual carries an "apply now" hold across the unlock.
type OverrideWindow struct {
	Active        bool      `json:"active"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	RestoreManual bool      `json:"restore_manual"`
}

// Expired reports whether the window has elapsed at now.
func (o OverrideWindow) Expired(now time.Time) bool {
	return !now.Before(o.EndTime)
}

// Validate implements Validator.
func (o OverrideWindow) Validate() error {
	if o.Active && o.EndTime.IsZero() {
		return fmt.Errorf("active override without end time")
	}
	return nil
}

// Event names recorded in the history.
const (
	EventIntervalStart             = "interval_start"
	EventIntervalStartNoSelection  = "interval_start_no_selection"
	EventIntervalStartDeferred     = "interval_start_deferred"
	EventIntervalStartUnregistered = "interval_start_unregistered"
	EventIntervalEnd               = "interval_end"
	EventOverrideStarted           = "override_started"
	EventOverrideEnded             = "override_ended"
	EventOverrideEndEarly          = "override_end_early"
	EventThresholdReached          = "threshold_reached"
	EventScheduleRejected          = "schedule_rejected"
	EventScheduleBackendRejected   = "schedule_backend_rejected"
	EventStorageDecodeFailure      = "storage_decode_failure"
	EventHandlerFailure            = "handler_failure"
	EventAuthorizationDenied       = "authorization_denied"
)

// MaxEventHistory caps the ring buffer.
const MaxEventHistory = 10

// Flag names.
const (
	FlagNavigate      = "navigate"
	FlagScheduleEnded = "schedule_ended"
)

// FlagKey returns the store key of a flag.
func FlagKey(name string) string {
	return "flag." + name
}

// EventRecord is one entry of the monitor event history.
type EventRecord struct {
	Event        string `json:"event"`
	ScheduleName string `json:"schedule_name"`
	Timestamp    int64  `json:"timestamp"`
}

// Time returns the record timestamp.
func (e EventRecord) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}

// EventHistory is the persisted ring buffer, newest first.
type EventHistory struct {
	Events []EventRecord `json:"events"`
}

// Validate implements Validator.
func (h EventHistory) Validate() error {
	for i, e := range h.Events {
		if e.Event == "" {
			return fmt.Errorf("event %d: missing name", i)
		}
	}
	return nil
}

// Flag is a one-shot signal read and cleared by the foreground process.
type Flag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	SetAt int64  `json:"set_at"`
}

// Validate implements Validator.
func (f Flag) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("flag without name")
	}
	return nil
}

// Notification is a local notification asking the foreground process to navigate.
type Notification struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	NavigateTo string `json:"navigate_to"`
	CreatedAt  int64  `json:"created_at"`
}

// NotificationList is the pending notification outbox.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
}

// Validate implements Validator.
func (l NotificationList) Validate() error {
	for i, n := range l.Notifications {
		if n.ID == "" {
			return fmt.Errorf("notification %d: missing id", i)
		}
	}
	return nil
}

// Activity is a window registered with the scheduling backend.
// Repeating windows use minute-of-day fields; one-shot windows use StartAt/EndAt.
type Activity struct {
	Name        string    `json:"name"`
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
	Repeats     bool      `json:"repeats"`
	OneShot     bool      `json:"one_shot"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
}

// Fingerprint identifies a registration; a changed fingerprint means the
// scheduler must rebuild the activity's triggers.
func (a Activity) Fingerprint() string {
	if a.OneShot {
		return fmt.Sprintf("%s|once|%d|%d", a.Name, a.StartAt.Unix(), a.EndAt.Unix())
	}
	return fmt.Sprintf("%s|daily|%d|%d|%t", a.Name, a.StartMinute, a.EndMinute, a.Repeats)
}

// ActivityList is the persisted set of backend registrations.
type ActivityList struct {
	Activities []Activity `json:"activities"`
}

// Validate implements Validator.
func (l ActivityList) Validate() error {
	for i, a := range l.Activities {
		if a.Name == "" {
			return fmt.Errorf("activity %d: missing name", i)
		}
	}
	return nil
}

// MonitorInit records that a monitor process was instantiated on this host.
type MonitorInit struct {
	PID           int    `json:"pid"`
	Hostname      string `json:"hostname"`
	Platform      string `json:"platform"`
	InitializedAt int64  `json:"initialized_at"`
}

// Validate implements Validator.
func (m MonitorInit) Validate() error {
	if m.InitializedAt == 0 {
		return fmt.Errorf("monitor init without timestamp")
	}
	return nil
}

// MonitorStatus is the diagnostic view returned to the foreground process.
type MonitorStatus struct {
	EverInitialized     bool         `json:"ever_initialized"`
	InitializedAt       time.Time    `json:"initialized_at,omitempty"`
	LastEvent           *EventRecord `json:"last_event,omitempty"`
	LastEventAgeMinutes int          `json:"last_event_age_minutes"`
	SchedulerPID        int          `json:"scheduler_pid,omitempty"`
	SchedulerAlive      bool         `json:"scheduler_alive"`
	LastHeartbeat       time.Time    `json:"last_heartbeat,omitempty"`
}

// DaemonHeartbeat is written by the scheduler daemon for liveness checks.
type DaemonHeartbeat struct {
	PID           int    `json:"pid"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	Version       string `json:"version"`
}

// Validate implements Validator.
func (h DaemonHeartbeat) Validate() error {
	if h.PID == 0 {
		return fmt.Errorf("heartbeat without pid")
	}
	return nil
}

// AuthorizationStatus is the platform permission state.
type AuthorizationStatus string

const (
	AuthNotDetermined AuthorizationStatus = "not_determined"
	AuthDenied        AuthorizationStatus = "denied"
	AuthApproved      AuthorizationStatus = "approved"
)

// Authorization is the persisted permission decision.
type Authorization struct {
	Status    AuthorizationStatus `json:"status"`
	DecidedAt int64               `json:"decided_at"`
}

// Validate implements Validator.
func (a Authorization) Validate() error {
	switch a.Status {
	case AuthNotDetermined, AuthDenied, AuthApproved:
		return nil
	}
	return fmt.Errorf("unknown authorization status %q", a.Status)
}

// SweepResult captures what happened during a single process sweep.
type SweepResult struct {
	KilledPIDs []int
	Skipped    []Target // Targets the desktop surface cannot act on
	Errors     []error
	ExecutedAt time.Time
	DurationMs int64
}
