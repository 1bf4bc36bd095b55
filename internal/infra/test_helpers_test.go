package infra

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// mockCommandRunner records commands instead of running them.
type mockCommandRunner struct {
	mu       sync.Mutex
	commands []string
	outputs  map[string][]byte
	errs     map[string]error
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		outputs: make(map[string][]byte),
		errs:    make(map[string]error),
	}
}

func (m *mockCommandRunner) record(name string, args ...string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := strings.TrimSpace(name + " " + strings.Join(args, " "))
	m.commands = append(m.commands, cmd)
	return cmd
}

func (m *mockCommandRunner) Run(name string, args ...string) error {
	return m.errs[m.record(name, args...)]
}

func (m *mockCommandRunner) Output(name string, args ...string) ([]byte, error) {
	cmd := m.record(name, args...)
	return m.outputs[cmd], m.errs[cmd]
}

func (m *mockCommandRunner) Start(name string, args ...string) error {
	return m.errs[m.record(name, args...)]
}

func (m *mockCommandRunner) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// fixedClock returns the same instant until moved.
type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakePlatform is a test double for domain.PlatformChecker.
type fakePlatform struct {
	name string
	err  error
}

func (f *fakePlatform) Check(context.Context) (string, error) {
	if f.err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedPlatform, f.err)
	}
	return f.name, nil
}
