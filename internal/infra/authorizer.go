package infra

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// StoreAuthorizer implements domain.Authorizer with the decision kept in the
// shared store, so every process sees the same answer.
type StoreAuthorizer struct {
	store    domain.SharedStore
	platform domain.PlatformChecker
	clock    domain.Clock
	logger   *zap.Logger
}

// NewAuthorizer creates an authorizer.
func NewAuthorizer(store domain.SharedStore, platform domain.PlatformChecker, clock domain.Clock, logger *zap.Logger) *StoreAuthorizer {
	return &StoreAuthorizer{store: store, platform: platform, clock: clock, logger: logger}
}

// Status returns the persisted decision. Missing or corrupt means not determined.
func (a *StoreAuthorizer) Status(ctx context.Context) (domain.AuthorizationStatus, error) {
	var auth domain.Authorization
	found, err := domain.LoadRecord(ctx, a.store, domain.KeyAuthorization, domain.KindAuthorization, &auth)
	if errors.Is(err, domain.ErrStorageDecode) {
		a.logger.Warn("corrupt authorization record", zap.Error(err))
		return domain.AuthNotDetermined, nil
	}
	if err != nil {
		return domain.AuthNotDetermined, err
	}
	if !found {
		return domain.AuthNotDetermined, nil
	}
	return auth.Status, nil
}

// Request runs the platform check, then records approve as the decision.
// An unsupported platform is reported and nothing is recorded.
func (a *StoreAuthorizer) Request(ctx context.Context, approve bool) (domain.AuthorizationStatus, error) {
	platform, err := a.platform.Check(ctx)
	if err != nil {
		return domain.AuthNotDetermined, err
	}

	status := domain.AuthDenied
	if approve {
		status = domain.AuthApproved
	}
	auth := domain.Authorization{Status: status, DecidedAt: a.clock.Now().Unix()}
	if err := domain.SaveRecord(ctx, a.store, domain.KeyAuthorization, domain.KindAuthorization, &auth); err != nil {
		return domain.AuthNotDetermined, fmt.Errorf("failed to save authorization: %w", err)
	}

	a.logger.Info("authorization decided",
		zap.String("status", string(status)),
		zap.String("platform", platform))
	return status, nil
}

var _ domain.Authorizer = (*StoreAuthorizer)(nil)
