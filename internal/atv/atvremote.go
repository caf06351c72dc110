package atv

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/tvcastd/tvcast/internal/infrastructure/logging"
)

// Output markers emitted by the atvremote CLI during pairing.
const (
	markerPinPrompt   = "Enter PIN on screen:"
	markerCredentials = "You may now use these credentials:"
)

// ExecBridge drives Apple TV protocol operations through the atvremote
// CLI. Each operation is one bounded subprocess invocation; pairing holds
// a subprocess open across the PIN exchange.
//
// Implements Pairer and Controller.
type ExecBridge struct {
	binary         string
	pairTimeout    time.Duration
	commandTimeout time.Duration
	logger         *logging.Logger
}

// NewExecBridge creates a bridge using the given atvremote binary.
func NewExecBridge(binary string, pairTimeout, commandTimeout time.Duration, logger *logging.Logger) *ExecBridge {
	if logger == nil {
		logger = logging.Default()
	}
	return &ExecBridge{
		binary:         binary,
		pairTimeout:    pairTimeout,
		commandTimeout: commandTimeout,
		logger:         logger.With("component", "atvremote"),
	}
}

// BeginPairing launches an interactive pairing subprocess for one
// protocol and reads its output until the handshake either asks for a
// PIN, completes outright, or reports that it cannot proceed.
func (b *ExecBridge) BeginPairing(ctx context.Context, address string, protocol Protocol) (Handshake, error) {
	ctx, cancel := context.WithTimeout(ctx, b.pairTimeout)

	//nolint:gosec // Binary path comes from validated config
	cmd := exec.CommandContext(ctx, b.binary,
		"--address", address,
		"--protocol", string(protocol),
		"pair",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout // Interleave stderr with stdout for parsing

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting pairing for %s/%s: %w", address, protocol, err)
	}

	b.logger.Info("pairing handshake opened",
		"address", address,
		"protocol", protocol,
		"pid", cmd.Process.Pid,
	)

	h := &execHandshake{
		cmd:    cmd,
		stdin:  stdin,
		cancel: cancel,
		lines:  make(chan string, 32),
	}
	go h.readOutput(stdout)

	outcome, err := h.awaitOpening(ctx)
	if err != nil {
		h.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	h.outcome = outcome
	return h, nil
}

// PlayURL streams a media URL to the device over AirPlay.
func (b *ExecBridge) PlayURL(ctx context.Context, address, credentials, url string) error {
	return b.run(ctx, address,
		"--airplay-credentials", credentials,
		"play_url="+url,
	)
}

// LaunchApp opens an app deep link on the device over Companion.
func (b *ExecBridge) LaunchApp(ctx context.Context, address, credentials, link string) error {
	return b.run(ctx, address,
		"--companion-credentials", credentials,
		"launch_app="+link,
	)
}

// Stop halts playback. The menu command backs out of whatever is playing;
// it is the only stop that works across both dispatch paths.
func (b *ExecBridge) Stop(ctx context.Context, address, credentials string) error {
	return b.run(ctx, address,
		"--companion-credentials", credentials,
		"menu",
	)
}

// run executes one bounded atvremote command.
func (b *ExecBridge) run(ctx context.Context, address string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, b.commandTimeout)
	defer cancel()

	full := append([]string{"--address", address}, args...)

	//nolint:gosec // Binary path comes from validated config
	cmd := exec.CommandContext(ctx, b.binary, full...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %s", ErrTimeout, address)
	}
	return classifyCommandError(address, output.String(), err)
}

// classifyCommandError maps CLI failure output onto sentinel errors.
func classifyCommandError(address, output string, err error) error {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "no service"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no route to host"):
		return fmt.Errorf("%w: %s", ErrUnreachable, address)
	case strings.Contains(lower, "authentication"),
		strings.Contains(lower, "credentials"):
		return fmt.Errorf("%w: %s", ErrNotAuthenticated, address)
	default:
		return fmt.Errorf("device command failed: %w: %s", err, firstLine(output))
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// execHandshake tracks one pairing subprocess across the PIN exchange.
type execHandshake struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc
	lines  chan string

	mu          sync.Mutex
	outcome     PairingOutcome
	credentials string
	closed      bool
}

// readOutput streams subprocess output lines into the channel.
func (h *execHandshake) readOutput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		h.lines <- scanner.Text()
	}
	close(h.lines)
}

// awaitOpening reads output until the handshake declares how it opened.
func (h *execHandshake) awaitOpening(ctx context.Context) (PairingOutcome, error) {
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: waiting for pairing prompt", ErrTimeout)
		case line, ok := <-h.lines:
			if !ok {
				// Process exited before prompting. Either it completed
				// without a PIN or the protocol cannot pair this way.
				if h.credentials != "" {
					return OutcomeCompleted, nil
				}
				return OutcomeCredentialsRequired, nil
			}
			if cred, found := strings.CutPrefix(strings.TrimSpace(line), markerCredentials); found {
				h.mu.Lock()
				h.credentials = strings.TrimSpace(cred)
				h.mu.Unlock()
				continue
			}
			if strings.Contains(line, markerPinPrompt) {
				return OutcomePinRequired, nil
			}
		}
	}
}

// Outcome reports how the handshake opened.
func (h *execHandshake) Outcome() PairingOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

// Credentials returns the credential blob once issued.
func (h *execHandshake) Credentials() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.credentials
}

// SubmitPin writes the PIN to the subprocess and waits for the handshake
// to finish. The credential line appears on success; a clean exit without
// one means the device refused the PIN.
func (h *execHandshake) SubmitPin(ctx context.Context, pin string) (string, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrHandshakeClosed
	}
	h.mu.Unlock()

	if _, err := fmt.Fprintln(h.stdin, pin); err != nil {
		return "", fmt.Errorf("sending pin: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: waiting for pairing result", ErrTimeout)
		case line, ok := <-h.lines:
			if !ok {
				// Output drained; the process result decides
				err := h.cmd.Wait()
				h.mu.Lock()
				cred := h.credentials
				h.closed = true
				h.mu.Unlock()
				h.cancel()

				if cred != "" {
					return cred, nil
				}
				if err != nil {
					return "", fmt.Errorf("%w: %v", ErrPinRejected, err)
				}
				return "", ErrPinRejected
			}
			if cred, found := strings.CutPrefix(strings.TrimSpace(line), markerCredentials); found {
				h.mu.Lock()
				h.credentials = strings.TrimSpace(cred)
				h.mu.Unlock()
			}
		}
	}
}

// Close terminates the subprocess. Safe to call more than once.
func (h *execHandshake) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.stdin.Close() //nolint:errcheck // Closing to unblock the subprocess
	h.cancel()

	// Drain so the reader goroutine can exit
	go func() {
		for range h.lines { //nolint:revive // Intentional drain
		}
	}()

	if h.cmd.Process != nil {
		_ = h.cmd.Wait() //nolint:errcheck // Exit status irrelevant after cancel
	}
	return nil
}
