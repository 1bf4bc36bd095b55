package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// ActionResponse tells the shield surface what to do after a button press.
type ActionResponse string

// ResponseClose dismisses the shield.
const ResponseClose ActionResponse = "close"

// ReflectionScreen is where the foreground process navigates after a primary action.
const ReflectionScreen = "reflection"

// InteractionHandler answers button presses on the shield.
// It persists first and never waits on the notification popup.
type InteractionHandler struct {
	events    *EventChannel
	presenter domain.NotificationPresenter
	clock     domain.Clock
	logger    *zap.Logger
}

// NewInteractionHandler creates an interaction handler. presenter may be nil.
func NewInteractionHandler(events *EventChannel, presenter domain.NotificationPresenter, clock domain.Clock, logger *zap.Logger) *InteractionHandler {
	return &InteractionHandler{events: events, presenter: presenter, clock: clock, logger: logger}
}

// OnPrimaryAction asks the foreground process to open the reflection screen.
func (h *InteractionHandler) OnPrimaryAction(ctx context.Context, target domain.Target) ActionResponse {
	if err := h.events.SetFlag(ctx, domain.FlagNavigate, "true"); err != nil {
		h.logger.Warn("failed to set navigate flag", zap.Error(err))
	}

	n := domain.Notification{
		ID:         uuid.NewString(),
		Title:      "Take a moment",
		Body:       "Open shieldmon to reflect before continuing.",
		NavigateTo: ReflectionScreen,
		CreatedAt:  h.clock.Now().Unix(),
	}
	if err := h.events.EnqueueNotification(ctx, n); err != nil {
		h.logger.Warn("failed to enqueue notification", zap.Error(err))
	}
	if h.presenter != nil {
		if err := h.presenter.Present(n); err != nil {
			h.logger.Debug("notification not presented", zap.Error(err))
		}
	}

	h.logger.Info("primary action",
		zap.String("kind", string(target.Kind)),
		zap.String("notification", n.ID))
	return ResponseClose
}

// OnSecondaryAction dismisses the shield without any state change.
func (h *InteractionHandler) OnSecondaryAction(_ context.Context, target domain.Target) ActionResponse {
	h.logger.Debug("secondary action", zap.String("kind", string(target.Kind)))
	return ResponseClose
}
