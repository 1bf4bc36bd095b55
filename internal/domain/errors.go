package domain

import "errors"

var (
	// ErrAuthorizationDenied means the platform permission is absent.
	// Enforcement commands become no-ops returning it.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrUnsupportedPlatform means the OS is too old or not supported. Not retried.
	ErrUnsupportedPlatform = errors.New("unsupported platform version")

	// ErrNoSelection means enforcement was requested with nothing selected.
	ErrNoSelection = errors.New("no selection")

	// ErrStorageDecode marks a corrupt shared-store record. Readers treat it as absence.
	ErrStorageDecode = errors.New("storage decode failure")

	// ErrScheduleRejected marks a schedule entry that failed validation.
	ErrScheduleRejected = errors.New("schedule rejected")

	// ErrSchedulingBackendRejected marks a window the scheduling backend refused.
	ErrSchedulingBackendRejected = errors.New("scheduling backend rejected")

	// ErrNotFound is returned by the shared store for absent keys.
	ErrNotFound = errors.New("not found")
)
