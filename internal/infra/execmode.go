// Package infra implements infrastructure concerns: the shared store,
// key providers, the scheduling backend, processes and launchd.
package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as user with LaunchAgent (no sudo required)
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root with LaunchDaemon (sudo required)
	ExecModeSystem ExecMode = "system"
)

// LaunchdLabel is the label of the scheduler daemon plist.
const LaunchdLabel = "com.shieldmon.scheduler"

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode      ExecMode
	PlistDir  string // Where the plist file goes
	PlistPath string // Full path to plist file
	DataDir   string // Shared store, key and logs
	IsRoot    bool
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return systemModeConfig()
	}
	home, _ := os.UserHomeDir()
	return userModeConfig(home, false)
}

// GetUserModeConfig returns user mode config regardless of current euid.
// Under sudo the invoking user's home is used.
func GetUserModeConfig() *ExecModeConfig {
	return userModeConfig(GetRealUserHome(), os.Geteuid() == 0)
}

func systemModeConfig() *ExecModeConfig {
	return &ExecModeConfig{
		Mode:      ExecModeSystem,
		PlistDir:  "/Library/LaunchDaemons",
		PlistPath: filepath.Join("/Library/LaunchDaemons", LaunchdLabel+".plist"),
		DataDir:   "/var/lib/shieldmon",
		IsRoot:    true,
	}
}

func userModeConfig(home string, isRoot bool) *ExecModeConfig {
	plistDir := filepath.Join(home, "Library", "LaunchAgents")
	return &ExecModeConfig{
		Mode:      ExecModeUser,
		PlistDir:  plistDir,
		PlistPath: filepath.Join(plistDir, LaunchdLabel+".plist"),
		DataDir:   filepath.Join(home, ".shieldmon"),
		IsRoot:    isRoot,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (LaunchDaemon, root)"
	case ExecModeUser:
		return "user (LaunchAgent, non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so SUDO_USER is consulted first.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
