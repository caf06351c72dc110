package dispatch

import (
	"errors"
	"fmt"

	"github.com/tvcastd/tvcast/internal/atv"
)

// ErrEmptyURL indicates a play request without a URL.
var ErrEmptyURL = errors.New("url is required")

// ProtocolNotPairedError indicates the dispatch path needs a protocol
// the target device has no credentials for. The Protocol field names
// which one, so the UI can point the user at the right pairing flow.
type ProtocolNotPairedError struct {
	Protocol atv.Protocol
}

func (e *ProtocolNotPairedError) Error() string {
	return fmt.Sprintf("protocol %s not paired on target device", e.Protocol)
}

// NotPaired builds a ProtocolNotPairedError for the given protocol.
func NotPaired(p atv.Protocol) error {
	return &ProtocolNotPairedError{Protocol: p}
}
