package store

import "errors"

// Sentinel errors for device persistence operations.
var (
	// ErrDeviceNotFound indicates the requested device does not exist.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrNoDefaultDevice indicates no default dispatch target is set.
	ErrNoDefaultDevice = errors.New("no default device set")
)
