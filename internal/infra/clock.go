package infra

import (
	"time"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

var _ domain.Clock = SystemClock{}
