package domain

import (
	"context"
	"time"
)

// SharedStore is the only channel between shieldmon processes.
// Values are opaque bytes; callers encode them with EncodeRecord.
// Implementation: SQL table in one database file (SQLCipher or pure-Go SQLite).
type SharedStore interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes the value and returns once it is durable.
	Put(ctx context.Context, key string, value []byte) error

	// Update runs fn on the current value inside one write transaction.
	// Returning nil from fn deletes the key.
	Update(ctx context.Context, key string, fn func(cur []byte, found bool) ([]byte, error)) error

	// Take atomically reads and deletes the value, or returns ErrNotFound.
	Take(ctx context.Context, key string) ([]byte, error)

	// Delete removes keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Revision returns a counter bumped on every write to key (0 if absent).
	Revision(ctx context.Context, key string) (int64, error)

	// Close releases resources.
	Close() error
}

// EnforcementSurface is the system mechanism that actually restricts access.
// Only the shield enforcer writes it.
type EnforcementSurface interface {
	// Read returns the current restriction state (empty if none).
	Read(ctx context.Context) (ShieldState, error)

	// Write replaces the restriction state.
	Write(ctx context.Context, state ShieldState) error

	// Clear lifts every restriction.
	Clear(ctx context.Context) error
}

// ActivityCenter is the scheduling backend windows are registered with.
// Implementation: persisted registrations picked up by the scheduler daemon.
type ActivityCenter interface {
	// StartMonitoring registers one window; returns ErrSchedulingBackendRejected
	// when the window violates backend constraints.
	StartMonitoring(ctx context.Context, activity Activity) error

	// StopMonitoring unregisters the named windows.
	StopMonitoring(ctx context.Context, names ...string) error

	// StopAll unregisters every window in one write.
	StopAll(ctx context.Context) error

	// Activities returns the current registrations.
	Activities(ctx context.Context) ([]Activity, error)
}

// NotificationPresenter shows a local notification. Best effort, never blocks.
type NotificationPresenter interface {
	// Present starts delivery and returns without waiting for it.
	Present(n Notification) error
}

// Authorizer tracks the platform permission required to enforce.
type Authorizer interface {
	// Status returns the persisted decision.
	Status(ctx context.Context) (AuthorizationStatus, error)

	// Request runs the platform check and records the decision.
	Request(ctx context.Context, approve bool) (AuthorizationStatus, error)
}

// PlatformChecker reports whether this host can run enforcement.
type PlatformChecker interface {
	// Check returns ErrUnsupportedPlatform on an unsupported OS or version.
	Check(ctx context.Context) (platform string, err error)
}

// Clock abstracts the wall clock.
type Clock interface {
	Now() time.Time
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the predicate on the lowercased name.
	FindByName(match func(name string) bool) ([]int, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// LaunchAgentManager handles the LaunchAgent plist for the scheduler daemon.
type LaunchAgentManager interface {
	// Install writes and loads the plist.
	Install(execPath string) error

	// Uninstall unloads and removes the plist.
	Uninstall() error

	// IsInstalled checks if the plist is present.
	IsInstalled() bool

	// GetPlistPath returns the plist file path.
	GetPlistPath() string

	// NeedsUpdate checks if the plist content differs from the expected one.
	NeedsUpdate(execPath string) bool
}

// KeyProvider abstracts the source of the store passphrase.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
