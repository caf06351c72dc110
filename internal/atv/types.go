package atv

import (
	"fmt"
	"strings"
)

// Protocol identifies an Apple TV control protocol.
type Protocol string

// Known protocols, as advertised over mDNS.
const (
	ProtocolAirPlay   Protocol = "airplay"
	ProtocolCompanion Protocol = "companion"
	ProtocolMRP       Protocol = "mrp"
	ProtocolDMAP      Protocol = "dmap"
	ProtocolRAOP      Protocol = "raop"
)

// ParseProtocol validates a protocol name from user input.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProtocolAirPlay, ProtocolCompanion, ProtocolMRP, ProtocolDMAP, ProtocolRAOP:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProtocol, s)
	}
}

// PairingOutcome is the result of opening a pairing handshake.
type PairingOutcome string

const (
	// OutcomePinRequired means the device is displaying a PIN that must be
	// submitted to finish the handshake.
	OutcomePinRequired PairingOutcome = "PIN_REQUIRED"

	// OutcomeCredentialsRequired means the protocol needs out-of-band
	// credential material this system cannot supply. The caller should
	// pick a different protocol.
	OutcomeCredentialsRequired PairingOutcome = "CREDENTIALS_REQUIRED"

	// OutcomeCompleted means the handshake finished without a PIN and
	// credentials are available immediately.
	OutcomeCompleted PairingOutcome = "COMPLETED"
)

// DiscoveredDevice is a device seen during a network scan.
type DiscoveredDevice struct {
	// ID is a stable identifier derived from the protocol-layer identity
	// (mDNS device id), not the mutable network address.
	ID string

	// Name is the human-readable device name.
	Name string

	// Address is the device's current IPv4 address.
	Address string

	// Protocols is the set of control protocols the device advertises.
	Protocols []Protocol
}

// HasProtocol reports whether the device advertises the given protocol.
func (d DiscoveredDevice) HasProtocol(p Protocol) bool {
	for _, proto := range d.Protocols {
		if proto == p {
			return true
		}
	}
	return false
}

// FallbackID derives a device identifier when the protocol layer does not
// expose one: the address joined with the name. Stable as long as the
// device keeps its DHCP lease and name.
func FallbackID(address, name string) string {
	return address + "_" + name
}
