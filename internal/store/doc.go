// Package store persists known devices, their pairing credentials, and
// the single global default-device pointer.
//
// Invariants maintained here:
//   - Credentials are written only by completed pairing (SetCredential)
//     and survive discovery refreshes (Upsert never touches them).
//   - paired_protocols is derived from credentials at read time, so it is
//     always a subset of the advertised protocol set.
//   - The default pointer is a single row referencing devices(id) with
//     ON DELETE CASCADE; deleting the default device clears it atomically.
//
// All writes are single statements, so readers never observe a partial
// credential state.
package store
