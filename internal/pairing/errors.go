package pairing

import "errors"

// Sentinel errors for pairing operations.
var (
	// ErrNoActivePairing indicates a PIN was submitted for a device with
	// no session awaiting one.
	ErrNoActivePairing = errors.New("no active pairing session")

	// ErrPinOutstanding indicates a PIN submission is already in flight
	// for the device. Concurrent submissions are rejected, not queued.
	ErrPinOutstanding = errors.New("pin submission already in progress")

	// ErrInvalidPin indicates the device rejected the submitted PIN.
	// The session is failed; the caller may start a fresh pairing.
	ErrInvalidPin = errors.New("invalid pin")
)
