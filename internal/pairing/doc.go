// Package pairing drives the multi-step pairing handshake between a
// device and the control capability.
//
// Sessions are ephemeral and keyed by device: at most one exists per
// device, and starting a new one supersedes the old. The handshake
// object is owned exclusively by its session and released on completion,
// failure, cancellation, or supersession.
//
// State machine per device:
//
//	not_started -> awaiting_pin -> completed
//	                            -> failed (pin rejected)
//	not_started -> completed            (no PIN needed)
//	not_started -> failed               (credentials required out of band)
//
// Completed and Failed are terminal; a failed device pairs again only
// through a fresh Start.
package pairing
