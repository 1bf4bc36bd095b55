package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Shared store keys.
const (
	KeySelection          = "selection"
	KeySchedules          = "schedules"
	KeyShield             = "shield"
	KeyOverride           = "override"
	KeyEvents             = "events"
	KeyFlagNavigate       = "flag.navigate"
	KeyFlagScheduleEnded  = "flag.schedule_ended"
	KeyMonitorInit        = "monitor.init"
	KeyActivities         = "activities"
	KeyNotifications      = "notifications"
	KeySchedulerHeartbeat = "scheduler.heartbeat"
	KeyAuthorization      = "auth"
)

// RecordVersion is the only envelope version this build reads and writes.
const RecordVersion = 1

// Record kinds.
const (
	KindSelection        = "selection"
	KindScheduleList     = "schedule_list"
	KindShieldState      = "shield_state"
	KindOverrideWindow   = "override_window"
	KindEventHistory     = "event_history"
	KindFlag             = "flag"
	KindMonitorInit      = "monitor_init"
	KindActivityList     = "activity_list"
	KindNotificationList = "notification_list"
	KindDaemonHeartbeat  = "daemon_heartbeat"
	KindAuthorization    = "authorization"
)

// Validator is implemented by every record payload.
type Validator interface {
	Validate() error
}

type envelope struct {
	Kind string          `json:"kind"`
	V    int             `json:"v"`
	Data json.RawMessage `json:"data"`
}

// EncodeRecord wraps v in a tagged, versioned envelope.
func EncodeRecord(kind string, v Validator) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	return json.Marshal(envelope{Kind: kind, V: RecordVersion, Data: data})
}

// DecodeRecord unwraps an envelope into v.
// Wrong kind, unknown version, unknown or missing fields all yield ErrStorageDecode.
func DecodeRecord(raw []byte, kind string, v Validator) error {
	var env envelope
	if err := strictUnmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %s envelope: %v", ErrStorageDecode, kind, err)
	}
	if env.Kind != kind {
		return fmt.Errorf("%w: expected kind %q, got %q", ErrStorageDecode, kind, env.Kind)
	}
	if env.V != RecordVersion {
		return fmt.Errorf("%w: %s version %d not supported", ErrStorageDecode, kind, env.V)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrStorageDecode, kind)
	}
	if err := strictUnmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrStorageDecode, kind, err)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStorageDecode, kind, err)
	}
	return nil
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// LoadRecord reads and decodes key into v. An absent key returns found=false.
// A corrupt record returns an error wrapping ErrStorageDecode.
func LoadRecord(ctx context.Context, s SharedStore, key, kind string, v Validator) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := DecodeRecord(raw, kind, v); err != nil {
		return false, err
	}
	return true, nil
}

// SaveRecord encodes v and writes it under key.
func SaveRecord(ctx context.Context, s SharedStore, key, kind string, v Validator) error {
	raw, err := EncodeRecord(kind, v)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, raw)
}

// UpdateRecord runs fn on the decoded record inside one store transaction.
// A corrupt record is handed to fn as absent and reported through recovered.
// Returning nil from fn deletes the key.
func UpdateRecord[T any, PT interface {
	*T
	Validator
}](ctx context.Context, s SharedStore, key, kind string, fn func(cur PT, found bool) (PT, error)) (recovered bool, err error) {
	err = s.Update(ctx, key, func(raw []byte, found bool) ([]byte, error) {
		recovered = false
		cur := PT(new(T))
		if found {
			if decErr := DecodeRecord(raw, kind, cur); decErr != nil {
				recovered = true
				found = false
				cur = PT(new(T))
			}
		}
		next, err := fn(cur, found)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		return EncodeRecord(kind, next)
	})
	return recovered, err
}
