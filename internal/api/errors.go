package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tvcastd/tvcast/internal/atv"
	"github.com/tvcastd/tvcast/internal/dispatch"
	"github.com/tvcastd/tvcast/internal/pairing"
	"github.com/tvcastd/tvcast/internal/store"
	"github.com/tvcastd/tvcast/internal/stream"
)

// Error is the error half of the response envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Domain error codes. UIs branch on these, so they are part of the API
// contract.
const (
	ErrCodeUnknownDevice       = "UNKNOWN_DEVICE"
	ErrCodeUnsupportedProtocol = "UNSUPPORTED_PROTOCOL"
	ErrCodeProtocolNotPaired   = "PROTOCOL_NOT_PAIRED"
	ErrCodeNoActivePairing     = "NO_ACTIVE_PAIRING"
	ErrCodeInvalidPin          = "INVALID_PIN"
	ErrCodeNoDefaultDevice     = "NO_DEFAULT_DEVICE"
	ErrCodeTransformFailed     = "STREAM_TRANSFORM_FAILED"
	ErrCodeDeviceUnreachable   = "DEVICE_UNREACHABLE"
	ErrCodeCredentialRejected  = "CREDENTIAL_REJECTED"
)

// Transport-level error codes.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeInternal   = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeOK writes the success envelope.
func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"ok": true, "data": data})
}

// writeError writes the failure envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"ok":    false,
		"error": Error{Code: code, Message: message},
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps domain errors onto the documented codes.
// Anything unrecognised becomes a 500 with a generic message so internal
// details never leak into responses.
func writeDomainError(w http.ResponseWriter, err error) {
	var notPaired *dispatch.ProtocolNotPairedError
	switch {
	case errors.Is(err, store.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, ErrCodeUnknownDevice, "device not found")
	case errors.Is(err, store.ErrNoDefaultDevice):
		writeError(w, http.StatusBadRequest, ErrCodeNoDefaultDevice, "no default device set")
	case errors.Is(err, atv.ErrUnsupportedProtocol):
		writeError(w, http.StatusBadRequest, ErrCodeUnsupportedProtocol, err.Error())
	case errors.As(err, &notPaired):
		writeError(w, http.StatusConflict, ErrCodeProtocolNotPaired, err.Error())
	case errors.Is(err, pairing.ErrNoActivePairing):
		writeError(w, http.StatusConflict, ErrCodeNoActivePairing, "no pairing session in progress for this device")
	case errors.Is(err, pairing.ErrInvalidPin):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidPin, "the device rejected the PIN")
	case errors.Is(err, pairing.ErrPinOutstanding):
		writeError(w, http.StatusConflict, ErrCodeNoActivePairing, "a PIN submission is already in progress")
	case errors.Is(err, stream.ErrTransformFailed), errors.Is(err, stream.ErrResolveFailed):
		writeError(w, http.StatusBadGateway, ErrCodeTransformFailed, "could not prepare a playable stream")
	case errors.Is(err, atv.ErrNotAuthenticated):
		writeError(w, http.StatusConflict, ErrCodeCredentialRejected, "stored credentials were rejected; re-pair the device")
	case errors.Is(err, atv.ErrUnreachable), errors.Is(err, atv.ErrTimeout):
		writeError(w, http.StatusBadGateway, ErrCodeDeviceUnreachable, "device did not respond")
	case errors.Is(err, dispatch.ErrEmptyURL):
		writeBadRequest(w, "url is required")
	default:
		writeInternalError(w, "internal server error")
	}
}
