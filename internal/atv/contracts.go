package atv

import "context"

// Scanner discovers Apple TV devices on the local network.
type Scanner interface {
	// Scan sweeps the network and returns all discovered devices.
	Scan(ctx context.Context) ([]DiscoveredDevice, error)

	// Probe checks a single address and returns the protocols it
	// advertises. Returns ErrUnreachable if nothing answers.
	Probe(ctx context.Context, address string) ([]Protocol, error)
}

// Handshake is an in-progress pairing exchange with a device.
// It is owned exclusively by one pairing session and must be closed
// on completion, failure, or cancellation.
type Handshake interface {
	// Outcome reports how the handshake opened.
	Outcome() PairingOutcome

	// Credentials returns the credential blob once the handshake has
	// completed. Empty until then.
	Credentials() string

	// SubmitPin forwards the on-screen PIN to the device and, on success,
	// returns the issued credential blob. Returns ErrPinRejected if the
	// device refuses the PIN.
	SubmitPin(ctx context.Context, pin string) (string, error)

	// Close releases the handshake. Safe to call more than once.
	Close() error
}

// Pairer opens pairing handshakes with devices.
type Pairer interface {
	// BeginPairing starts a handshake for one protocol on one device.
	BeginPairing(ctx context.Context, address string, protocol Protocol) (Handshake, error)
}

// Controller issues playback commands to a paired device.
// Credentials are the opaque blobs produced by a completed handshake.
type Controller interface {
	// PlayURL streams a media URL to the device over AirPlay.
	PlayURL(ctx context.Context, address, credentials, url string) error

	// LaunchApp opens an app deep link on the device over Companion.
	LaunchApp(ctx context.Context, address, credentials, link string) error

	// Stop halts whatever is currently playing.
	Stop(ctx context.Context, address, credentials string) error
}
