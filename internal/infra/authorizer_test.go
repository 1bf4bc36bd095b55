package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

func TestStoreAuthorizer(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Unix(1_760_000_000, 0)}

	tests := []struct {
		name       string
		platform   *fakePlatform
		approve    bool
		wantStatus domain.AuthorizationStatus
		wantErr    error
	}{
		{"approved", &fakePlatform{name: "darwin 14.2"}, true, domain.AuthApproved, nil},
		{"denied", &fakePlatform{name: "ubuntu 24.04"}, false, domain.AuthDenied, nil},
		{"unsupported platform", &fakePlatform{err: errors.New("too old")}, true, domain.AuthNotDetermined, domain.ErrUnsupportedPlatform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := NewAuthorizer(NewMemStore(), tt.platform, clock, zap.NewNop())

			status, err := auth.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, domain.AuthNotDetermined, status)

			status, err = auth.Request(ctx, tt.approve)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantStatus, status)

			persisted, err := auth.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, persisted)
		})
	}
}

func TestStoreAuthorizer_CorruptRecord(t *testing.T) {
	store := NewMemStore()
	store.Corrupt(domain.KeyAuthorization, []byte(`{"kind":"authorization","v":1,"data":{"status":"maybe","decided_at":1}}`))
	auth := NewAuthorizer(store, &fakePlatform{name: "linux"}, &fixedClock{}, zap.NewNop())

	status, err := auth.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.AuthNotDetermined, status)
}
