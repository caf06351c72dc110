// Package atv provides the Apple TV device control capability.
//
// This package covers the protocol-facing edge of the system:
//   - mDNS discovery of devices and their advertised protocols
//   - Pairing handshakes (PIN exchange, credential issuance)
//   - Playback commands (play URL, launch app, stop)
//
// Protocol sessions are driven through the atvremote CLI rather than a
// native protocol stack; each command is a bounded subprocess invocation.
// The rest of the system consumes this package only through the Scanner,
// Pairer, and Controller interfaces, so the bridge can be swapped without
// touching pairing or dispatch logic.
//
// Failures surface as sentinel errors (ErrUnreachable, ErrTimeout,
// ErrPinRejected) checked with errors.Is. Timeouts are deliberately kept
// distinct from rejections: an asleep device is not a refused PIN.
package atv
