package usecase

import (
	"context"
	"fmt"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// AuthGate guards enforcement on the user's authorization decision.
// The zero value, with no authorizer, approves everything.
type AuthGate struct {
	auth domain.Authorizer
}

// NewAuthGate wraps auth.
func NewAuthGate(auth domain.Authorizer) AuthGate {
	return AuthGate{auth: auth}
}

// Approved reports whether enforcement may run.
func (g AuthGate) Approved(ctx context.Context) (bool, error) {
	if g.auth == nil {
		return true, nil
	}
	status, err := g.auth.Status(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read authorization: %w", err)
	}
	return status == domain.AuthApproved, nil
}

// Require returns domain.ErrAuthorizationDenied unless enforcement is approved.
func (g AuthGate) Require(ctx context.Context) error {
	ok, err := g.Approved(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAuthorizationDenied
	}
	return nil
}
