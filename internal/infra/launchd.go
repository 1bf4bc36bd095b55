package infra

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/spf13/afero"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// Agents run in the user's session and restart only after a crash; the
// root daemon is kept alive unconditionally.
var plistTemplate = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>daemon</string>
        <string>--data-dir</string>
        <string>{{.DataDir}}</string>
    </array>
    <key>EnvironmentVariables</key>
    <dict>
        <key>SHIELDMON_DATA_DIR</key>
        <string>{{.DataDir}}</string>
    </dict>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
{{- if .Agent}}
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>
    <key>ProcessType</key>
    <string>Background</string>
{{- else}}
    <true/>
{{- end}}
    <key>StandardOutPath</key>
    <string>{{.StdoutPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{.StderrPath}}</string>
    <key>ThrottleInterval</key>
    <integer>{{.Throttle}}</integer>
</dict>
</plist>
`))

// throttleSeconds is the minimum launchd respawn interval.
const throttleSeconds = 10

type plistParams struct {
	Label          string
	ExecutablePath string
	DataDir        string
	StdoutPath     string
	StderrPath     string
	Agent          bool
	Throttle       int
}

// LaunchdService keeps the scheduler daemon registered with launchd.
type LaunchdService struct {
	fs        afero.Fs
	runner    CommandRunner
	mode      ExecMode
	plistDir  string
	plistPath string
	dataDir   string
}

// NewLaunchdManager returns a launchd service for the detected execution mode.
func NewLaunchdManager(config *ExecModeConfig) domain.LaunchAgentManager {
	return NewLaunchdManagerWithDeps(config, afero.NewOsFs(), &RealCommandRunner{})
}

// NewLaunchdManagerWithDeps creates a service over fs and runner (for testing).
func NewLaunchdManagerWithDeps(config *ExecModeConfig, fs afero.Fs, runner CommandRunner) *LaunchdService {
	return &LaunchdService{
		fs:        fs,
		runner:    runner,
		mode:      config.Mode,
		plistDir:  config.PlistDir,
		plistPath: config.PlistPath,
		dataDir:   config.DataDir,
	}
}

func (s *LaunchdService) render(execPath string) ([]byte, error) {
	var buf bytes.Buffer
	err := plistTemplate.Execute(&buf, plistParams{
		Label:          LaunchdLabel,
		ExecutablePath: execPath,
		DataDir:        s.dataDir,
		StdoutPath:     filepath.Join(s.dataDir, "scheduler.stdout.log"),
		StderrPath:     filepath.Join(s.dataDir, "scheduler.stderr.log"),
		Agent:          s.mode != ExecModeSystem,
		Throttle:       throttleSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render plist: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the plist for execPath and loads it, replacing any
// previously loaded definition.
func (s *LaunchdService) Install(execPath string) error {
	content, err := s.render(execPath)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.plistDir, 0755); err != nil {
		return fmt.Errorf("failed to create plist directory: %w", err)
	}

	if s.IsInstalled() {
		_ = s.launchctl("unload")
	}
	if err := afero.WriteFile(s.fs, s.plistPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write plist: %w", err)
	}
	if err := s.launchctl("load"); err != nil {
		return fmt.Errorf("failed to load %s: %w", LaunchdLabel, err)
	}
	return nil
}

// Uninstall unloads the job and removes the plist. Errors if nothing is installed.
func (s *LaunchdService) Uninstall() error {
	_ = s.launchctl("unload")
	if err := s.fs.Remove(s.plistPath); err != nil {
		return fmt.Errorf("failed to remove plist: %w", err)
	}
	return nil
}

func (s *LaunchdService) IsInstalled() bool {
	ok, err := afero.Exists(s.fs, s.plistPath)
	return err == nil && ok
}

// NeedsUpdate reports whether an installed plist differs from what Install
// would write for execPath. A missing plist needs an install, not an update.
func (s *LaunchdService) NeedsUpdate(execPath string) bool {
	if !s.IsInstalled() {
		return false
	}
	current, err := afero.ReadFile(s.fs, s.plistPath)
	if err != nil {
		return true
	}
	want, err := s.render(execPath)
	return err != nil || !bytes.Equal(current, want)
}

func (s *LaunchdService) GetPlistPath() string {
	return s.plistPath
}

// launchctl runs the legacy load/unload verbs, which work for both agents
// and daemons without a domain target.
func (s *LaunchdService) launchctl(verb string) error {
	return s.runner.Run("launchctl", verb, "-w", s.plistPath)
}

var _ domain.LaunchAgentManager = (*LaunchdService)(nil)
