package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// maxPendingNotifications bounds the outbox when nobody consumes it.
const maxPendingNotifications = 20

// EventChannel is the cross-process mailbox: bounded event history,
// one-shot flags, the monitor init marker and the notification outbox.
//
// Each flag has a single writer (the monitor or the interaction handler)
// and a single reader (the foreground process). ReadAndClearFlag is an
// atomic take, so a flag is delivered at most once.
type EventChannel struct {
	store  domain.SharedStore
	clock  domain.Clock
	logger *zap.Logger
}

// NewEventChannel creates an event channel over store.
func NewEventChannel(store domain.SharedStore, clock domain.Clock, logger *zap.Logger) *EventChannel {
	return &EventChannel{store: store, clock: clock, logger: logger}
}

// AppendEvent inserts a record at the front of the history and truncates it.
// A corrupt history is replaced.
func (c *EventChannel) AppendEvent(ctx context.Context, event, scheduleName string) error {
	rec := domain.EventRecord{Event: event, ScheduleName: scheduleName, Timestamp: c.clock.Now().Unix()}

	recovered, err := domain.UpdateRecord(ctx, c.store, domain.KeyEvents, domain.KindEventHistory,
		func(cur *domain.EventHistory, _ bool) (*domain.EventHistory, error) {
			events := append([]domain.EventRecord{rec}, cur.Events...)
			if len(events) > domain.MaxEventHistory {
				events = events[:domain.MaxEventHistory]
			}
			return &domain.EventHistory{Events: events}, nil
		})
	if err != nil {
		return fmt.Errorf("failed to append event %s: %w", event, err)
	}
	if recovered {
		c.logger.Warn("replaced corrupt event history")
	}

	c.logger.Info("event recorded",
		zap.String("event", event),
		zap.String("schedule", scheduleName))
	return nil
}

// ReadHistory returns the history, newest first. Corrupt history reads as empty.
func (c *EventChannel) ReadHistory(ctx context.Context) ([]domain.EventRecord, error) {
	var h domain.EventHistory
	_, err := domain.LoadRecord(ctx, c.store, domain.KeyEvents, domain.KindEventHistory, &h)
	if errors.Is(err, domain.ErrStorageDecode) {
		c.logger.Warn("event history unreadable", zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h.Events, nil
}

// SetFlag writes a timestamped flag, replacing an unread one.
func (c *EventChannel) SetFlag(ctx context.Context, name, value string) error {
	f := domain.Flag{Name: name, Value: value, SetAt: c.clock.Now().Unix()}
	if err := domain.SaveRecord(ctx, c.store, domain.FlagKey(name), domain.KindFlag, &f); err != nil {
		return fmt.Errorf("failed to set flag %s: %w", name, err)
	}
	return nil
}

// ReadAndClearFlag takes the flag. ok is false when the flag is unset or corrupt.
func (c *EventChannel) ReadAndClearFlag(ctx context.Context, name string) (domain.Flag, bool, error) {
	raw, err := c.store.Take(ctx, domain.FlagKey(name))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Flag{}, false, nil
	}
	if err != nil {
		return domain.Flag{}, false, fmt.Errorf("failed to take flag %s: %w", name, err)
	}
	var f domain.Flag
	if err := domain.DecodeRecord(raw, domain.KindFlag, &f); err != nil {
		c.logger.Warn("discarded corrupt flag", zap.String("flag", name), zap.Error(err))
		return domain.Flag{}, false, nil
	}
	return f, true, nil
}

// RecordMonitorInit marks that a monitor process ran on this host.
func (c *EventChannel) RecordMonitorInit(ctx context.Context, platform string) error {
	host, _ := os.Hostname()
	m := domain.MonitorInit{
		PID:           os.Getpid(),
		Hostname:      host,
		Platform:      platform,
		InitializedAt: c.clock.Now().Unix(),
	}
	if err := domain.SaveRecord(ctx, c.store, domain.KeyMonitorInit, domain.KindMonitorInit, &m); err != nil {
		return fmt.Errorf("failed to record monitor init: %w", err)
	}
	return nil
}

// MonitorInit returns the last init marker, if any.
func (c *EventChannel) MonitorInit(ctx context.Context) (domain.MonitorInit, bool, error) {
	var m domain.MonitorInit
	found, err := domain.LoadRecord(ctx, c.store, domain.KeyMonitorInit, domain.KindMonitorInit, &m)
	if errors.Is(err, domain.ErrStorageDecode) {
		c.logger.Warn("monitor init marker unreadable", zap.Error(err))
		return domain.MonitorInit{}, false, nil
	}
	return m, found, err
}

// EnqueueNotification appends to the outbox, dropping the oldest past the cap.
func (c *EventChannel) EnqueueNotification(ctx context.Context, n domain.Notification) error {
	_, err := domain.UpdateRecord(ctx, c.store, domain.KeyNotifications, domain.KindNotificationList,
		func(cur *domain.NotificationList, _ bool) (*domain.NotificationList, error) {
			list := append(cur.Notifications, n)
			if len(list) > maxPendingNotifications {
				list = list[len(list)-maxPendingNotifications:]
			}
			return &domain.NotificationList{Notifications: list}, nil
		})
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// TakeNotification pops the oldest pending notification.
func (c *EventChannel) TakeNotification(ctx context.Context) (domain.Notification, bool, error) {
	var out domain.Notification
	var ok bool
	_, err := domain.UpdateRecord(ctx, c.store, domain.KeyNotifications, domain.KindNotificationList,
		func(cur *domain.NotificationList, found bool) (*domain.NotificationList, error) {
			if !found || len(cur.Notifications) == 0 {
				return nil, nil
			}
			out, ok = cur.Notifications[0], true
			if len(cur.Notifications) == 1 {
				return nil, nil
			}
			return &domain.NotificationList{Notifications: cur.Notifications[1:]}, nil
		})
	if err != nil {
		return domain.Notification{}, false, fmt.Errorf("failed to take notification: %w", err)
	}
	return out, ok, nil
}

// TakeNotifications drains the outbox.
func (c *EventChannel) TakeNotifications(ctx context.Context) ([]domain.Notification, error) {
	raw, err := c.store.Take(ctx, domain.KeyNotifications)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take notifications: %w", err)
	}
	var list domain.NotificationList
	if err := domain.DecodeRecord(raw, domain.KindNotificationList, &list); err != nil {
		c.logger.Warn("discarded corrupt notification outbox", zap.Error(err))
		return nil, nil
	}
	return list.Notifications, nil
}
