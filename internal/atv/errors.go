package atv

import "errors"

// Sentinel errors for device control failures.
// Callers should use errors.Is to check for these.
var (
	// ErrUnreachable indicates the device did not respond on the network.
	ErrUnreachable = errors.New("device unreachable")

	// ErrTimeout indicates a protocol call exceeded its deadline.
	// Distinct from rejection: the device may simply be asleep.
	ErrTimeout = errors.New("device operation timed out")

	// ErrPinRejected indicates the device refused the submitted PIN.
	ErrPinRejected = errors.New("pin rejected by device")

	// ErrUnsupportedProtocol indicates a protocol name that is not known
	// or not advertised by the target device.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrNotAuthenticated indicates a command was attempted without valid
	// credentials for the protocol.
	ErrNotAuthenticated = errors.New("not authenticated for protocol")

	// ErrHandshakeClosed indicates the pairing handshake was already
	// completed, failed, or cancelled.
	ErrHandshakeClosed = errors.New("pairing handshake closed")
)
