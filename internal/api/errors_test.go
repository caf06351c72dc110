package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tvcastd/tvcast/internal/atv"
	"github.com/tvcastd/tvcast/internal/dispatch"
	"github.com/tvcastd/tvcast/internal/pairing"
	"github.com/tvcastd/tvcast/internal/store"
	"github.com/tvcastd/tvcast/internal/stream"
)

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown device", store.ErrDeviceNotFound, http.StatusNotFound, ErrCodeUnknownDevice},
		{"no default", store.ErrNoDefaultDevice, http.StatusBadRequest, ErrCodeNoDefaultDevice},
		{"unsupported protocol", atv.ErrUnsupportedProtocol, http.StatusBadRequest, ErrCodeUnsupportedProtocol},
		{"not paired", dispatch.NotPaired(atv.ProtocolAirPlay), http.StatusConflict, ErrCodeProtocolNotPaired},
		{"no active pairing", pairing.ErrNoActivePairing, http.StatusConflict, ErrCodeNoActivePairing},
		{"invalid pin", pairing.ErrInvalidPin, http.StatusBadRequest, ErrCodeInvalidPin},
		{"pin outstanding", pairing.ErrPinOutstanding, http.StatusConflict, ErrCodeNoActivePairing},
		{"transform failed", stream.ErrTransformFailed, http.StatusBadGateway, ErrCodeTransformFailed},
		{"credential rejected", atv.ErrNotAuthenticated, http.StatusConflict, ErrCodeCredentialRejected},
		{"unreachable", atv.ErrUnreachable, http.StatusBadGateway, ErrCodeDeviceUnreachable},
		{"empty url", dispatch.ErrEmptyURL, http.StatusBadRequest, ErrCodeBadRequest},
		{"unrecognised", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var env struct {
				OK    bool   `json:"ok"`
				Error *Error `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decoding envelope: %v", err)
			}
			if env.OK {
				t.Error("ok = true, want false")
			}
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %q", env.Error, tt.wantCode)
			}
		})
	}
}
