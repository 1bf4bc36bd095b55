package infra

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// MinDarwinMajor is the oldest macOS release enforcement supports.
const MinDarwinMajor = 12

type platformInfoFunc func(ctx context.Context) (platform, family, version string, err error)

// HostPlatformChecker implements domain.PlatformChecker with gopsutil host info.
type HostPlatformChecker struct {
	goos string
	info platformInfoFunc
}

// NewPlatformChecker checks the running host.
func NewPlatformChecker() *HostPlatformChecker {
	return &HostPlatformChecker{goos: runtime.GOOS, info: host.PlatformInformationWithContext}
}

// Check returns a "platform version" description, or ErrUnsupportedPlatform.
func (c *HostPlatformChecker) Check(ctx context.Context) (string, error) {
	platform, _, version, err := c.info(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read platform information: %w", err)
	}
	desc := strings.TrimSpace(platform + " " + version)

	switch c.goos {
	case "linux":
		return desc, nil
	case "darwin":
		major, err := strconv.Atoi(strings.SplitN(version, ".", 2)[0])
		if err != nil {
			return "", fmt.Errorf("%w: unparseable macOS version %q", domain.ErrUnsupportedPlatform, version)
		}
		if major < MinDarwinMajor {
			return "", fmt.Errorf("%w: macOS %s, need %d or newer", domain.ErrUnsupportedPlatform, version, MinDarwinMajor)
		}
		return desc, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, c.goos)
}

var _ domain.PlatformChecker = (*HostPlatformChecker)(nil)
