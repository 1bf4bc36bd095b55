package infra

import (
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// DesktopNotifier implements domain.NotificationPresenter with the platform's
// notification command (osascript on macOS, notify-send on Linux).
// The command is started and never awaited.
type DesktopNotifier struct {
	goos   string
	runner CommandRunner
	logger *zap.Logger
}

// NewDesktopNotifier creates a notifier for the running OS.
func NewDesktopNotifier(logger *zap.Logger) *DesktopNotifier {
	return NewDesktopNotifierWithDeps(runtime.GOOS, &RealCommandRunner{}, logger)
}

// NewDesktopNotifierWithDeps creates a notifier with injectable dependencies (for testing).
func NewDesktopNotifierWithDeps(goos string, runner CommandRunner, logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{goos: goos, runner: runner, logger: logger}
}

// Present starts the notification command.
func (n *DesktopNotifier) Present(notif domain.Notification) error {
	var err error
	switch n.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptQuote(notif.Body), appleScriptQuote(notif.Title))
		err = n.runner.Start("osascript", "-e", script)
	case "linux":
		err = n.runner.Start("notify-send", "--app-name=shieldmon", notif.Title, notif.Body)
	default:
		return fmt.Errorf("notifications not supported on %s", n.goos)
	}
	if err != nil {
		n.logger.Warn("failed to present notification",
			zap.String("id", notif.ID),
			zap.Error(err))
		return err
	}
	n.logger.Debug("notification presented", zap.String("id", notif.ID))
	return nil
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

var _ domain.NotificationPresenter = (*DesktopNotifier)(nil)
