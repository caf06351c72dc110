package pairing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tvcastd/tvcast/internal/atv"
	"github.com/tvcastd/tvcast/internal/infrastructure/logging"
	"github.com/tvcastd/tvcast/internal/store"
)

// SessionState is the lifecycle state of a pairing session.
type SessionState string

// Session states. Completed and Failed are terminal.
const (
	StateNotStarted          SessionState = "not_started"
	StateAwaitingPin         SessionState = "awaiting_pin"
	StateAwaitingCredentials SessionState = "awaiting_credentials"
	StateCompleted           SessionState = "completed"
	StateFailed              SessionState = "failed"
)

// StartResult reports how a pairing handshake opened.
type StartResult struct {
	Outcome atv.PairingOutcome `json:"status"`
	Message string             `json:"message"`
}

// session is one in-flight pairing exchange. At most one exists per
// device; starting a new one supersedes the old.
type session struct {
	protocol  atv.Protocol
	handshake atv.Handshake
	state     SessionState
	pinBusy   bool
}

// Manager drives pairing handshakes to completion or failure.
//
// The state machine is strictly sequential per device: one session at a
// time, superseded by any new start_pairing for the same device. All
// credential writes happen here and nowhere else.
type Manager struct {
	repo   store.Repository
	pairer atv.Pairer
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates a pairing manager.
func NewManager(repo store.Repository, pairer atv.Pairer, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		repo:     repo,
		pairer:   pairer,
		logger:   logger.With("component", "pairing"),
		sessions: make(map[string]*session),
	}
}

// Start opens a pairing handshake for one device/protocol pair.
//
// Any prior in-flight session for the device is superseded: its
// handshake is closed and a later PIN submission against it fails with
// ErrNoActivePairing. The protocol must be one the device advertises.
func (m *Manager) Start(ctx context.Context, deviceID string, protocol string) (*StartResult, error) {
	device, err := m.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	proto, err := atv.ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}
	if !device.HasProtocol(proto) {
		return nil, fmt.Errorf("%w: device %s does not advertise %s",
			atv.ErrUnsupportedProtocol, deviceID, proto)
	}

	// Supersede any prior session before touching the network
	m.mu.Lock()
	if prior, ok := m.sessions[deviceID]; ok {
		m.closeSessionLocked(deviceID, prior)
	}
	s := &session{protocol: proto, state: StateNotStarted}
	m.sessions[deviceID] = s
	m.mu.Unlock()

	m.logger.Info("pairing started", "device_id", deviceID, "protocol", proto)

	handshake, err := m.pairer.BeginPairing(ctx, device.Address, proto)
	if err != nil {
		m.failSession(deviceID, s)
		return nil, fmt.Errorf("opening handshake: %w", err)
	}

	switch handshake.Outcome() {
	case atv.OutcomePinRequired:
		m.mu.Lock()
		if m.sessions[deviceID] == s {
			s.handshake = handshake
			s.state = StateAwaitingPin
			m.mu.Unlock()
		} else {
			// Superseded while we were opening the handshake
			m.mu.Unlock()
			handshake.Close() //nolint:errcheck // Superseded handshake
			return nil, ErrNoActivePairing
		}
		return &StartResult{
			Outcome: atv.OutcomePinRequired,
			Message: "Enter the PIN shown on the TV",
		}, nil

	case atv.OutcomeCompleted:
		credentials := handshake.Credentials()
		handshake.Close() //nolint:errcheck // Handshake finished
		if err := m.repo.SetCredential(ctx, deviceID, proto, credentials); err != nil {
			m.failSession(deviceID, s)
			return nil, fmt.Errorf("storing credentials: %w", err)
		}
		m.completeSession(deviceID, s)
		return &StartResult{
			Outcome: atv.OutcomeCompleted,
			Message: fmt.Sprintf("Paired %s without a PIN", proto),
		}, nil

	default: // OutcomeCredentialsRequired
		handshake.Close() //nolint:errcheck // Handshake cannot proceed
		m.failSession(deviceID, s)
		return &StartResult{
			Outcome: atv.OutcomeCredentialsRequired,
			Message: fmt.Sprintf("%s needs credentials this system cannot supply; try a different protocol", proto),
		}, nil
	}
}

// SubmitPin forwards the on-screen PIN to the device's active session.
//
// Valid only while the session is awaiting a PIN. On success the issued
// credentials are persisted under the session's protocol and the session
// completes. On rejection the session fails and ErrInvalidPin is
// returned; the caller may retry with a fresh Start.
func (m *Manager) SubmitPin(ctx context.Context, deviceID, pin string) error {
	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	if !ok || s.state != StateAwaitingPin {
		m.mu.Unlock()
		return ErrNoActivePairing
	}
	if s.pinBusy {
		m.mu.Unlock()
		return ErrPinOutstanding
	}
	s.pinBusy = true
	handshake := s.handshake
	proto := s.protocol
	m.mu.Unlock()

	credentials, err := handshake.SubmitPin(ctx, pin)

	m.mu.Lock()
	current := m.sessions[deviceID]
	if current != s {
		// Superseded mid-flight; the new session owns the device now
		m.mu.Unlock()
		return ErrNoActivePairing
	}
	s.pinBusy = false
	m.mu.Unlock()

	if err != nil {
		m.failSession(deviceID, s)
		if errors.Is(err, atv.ErrPinRejected) {
			m.logger.Info("pin rejected", "device_id", deviceID, "protocol", proto)
			return fmt.Errorf("%w: %v", ErrInvalidPin, err)
		}
		return fmt.Errorf("submitting pin: %w", err)
	}

	if err := m.repo.SetCredential(ctx, deviceID, proto, credentials); err != nil {
		m.failSession(deviceID, s)
		return fmt.Errorf("storing credentials: %w", err)
	}

	m.completeSession(deviceID, s)
	m.logger.Info("pairing completed", "device_id", deviceID, "protocol", proto)
	return nil
}

// Cancel releases any in-flight session for the device. Not an error if
// none exists.
func (m *Manager) Cancel(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[deviceID]; ok {
		m.closeSessionLocked(deviceID, s)
	}
}

// Shutdown releases every in-flight session. Called on daemon stop so
// no handshake process outlives the service.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		m.closeSessionLocked(id, s)
	}
}

// State reports the device's session state. StateNotStarted if no
// session exists.
func (m *Manager) State(deviceID string) SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[deviceID]; ok {
		return s.state
	}
	return StateNotStarted
}

// failSession marks a session failed and releases its handshake, unless
// it has already been superseded.
func (m *Manager) failSession(deviceID string, s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[deviceID] != s {
		return
	}
	if s.handshake != nil {
		s.handshake.Close() //nolint:errcheck // Releasing failed handshake
		s.handshake = nil
	}
	s.state = StateFailed
}

// completeSession marks a session completed, unless superseded.
func (m *Manager) completeSession(deviceID string, s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[deviceID] != s {
		return
	}
	if s.handshake != nil {
		s.handshake.Close() //nolint:errcheck // Handshake finished
		s.handshake = nil
	}
	s.state = StateCompleted
}

// closeSessionLocked releases a session's handshake and removes it.
// Caller must hold m.mu.
func (m *Manager) closeSessionLocked(deviceID string, s *session) {
	if s.handshake != nil {
		s.handshake.Close() //nolint:errcheck // Superseded or cancelled
		s.handshake = nil
	}
	s.state = StateFailed
	delete(m.sessions, deviceID)
}
