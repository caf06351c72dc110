package store

import (
	"time"

	"github.com/tvcastd/tvcast/internal/atv"
)

// Device is a known Apple TV, added by discovery or by hand.
//
// The ID is derived from the protocol-layer identity and never changes;
// Name and Address are mutable. A device with no credentials is known but
// not paired; the two states are distinct.
type Device struct {
	// ID is the stable device identifier.
	ID string `json:"id"`

	// Name is the human-readable device name.
	Name string `json:"name"`

	// Address is the device's current IPv4 address.
	Address string `json:"address"`

	// Protocols is the set of control protocols the device advertises.
	Protocols []atv.Protocol `json:"protocols"`

	// Credentials maps protocol to the opaque credential blob issued by a
	// completed pairing. Written only by completed pairing.
	Credentials map[atv.Protocol]string `json:"-"`

	// CreatedAt is when the device was first added.
	CreatedAt time.Time `json:"created_at"`

	// LastSeen is when the device last answered a scan. Nil if never
	// seen since being added manually.
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// PairedProtocols returns the protocols for which credentials exist.
// Always a subset of Protocols.
func (d *Device) PairedProtocols() []atv.Protocol {
	paired := make([]atv.Protocol, 0, len(d.Credentials))
	for _, p := range d.Protocols {
		if _, ok := d.Credentials[p]; ok {
			paired = append(paired, p)
		}
	}
	return paired
}

// IsPaired reports whether any protocol has credentials.
func (d *Device) IsPaired() bool {
	return len(d.PairedProtocols()) > 0
}

// Credential returns the credential blob for a protocol, if paired.
func (d *Device) Credential(p atv.Protocol) (string, bool) {
	cred, ok := d.Credentials[p]
	return cred, ok
}

// HasProtocol reports whether the device advertises the given protocol.
func (d *Device) HasProtocol(p atv.Protocol) bool {
	for _, proto := range d.Protocols {
		if proto == p {
			return true
		}
	}
	return false
}
