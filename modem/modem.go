// Package modem drives a SIM7070G cellular/GNSS module over a
// line-oriented AT command channel. The module's radio and GNSS engine
// share the same RF front end, so callers switch one off before
// switching the other on; the modem tracks which one was last commanded
// on but cannot enforce exclusion in hardware.
package modem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/S-3moticon/Smart-Bike-Tracker/at"
)

// State is the lifecycle state of the modem.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Modem owns the transport exclusively: transactions are synchronous
// and must not overlap. There is a single logical thread of execution
// in the tracker, so the Modem does not lock internally.
type Modem struct {
	config    Config
	transport Transport
	state     State
	rfOn      bool
	gnssOn    bool
	closed    bool
}

// New creates a Modem from a built Config. The transport is not opened
// until Initialize.
func New(config Config) *Modem {
	config.setDefaults()
	return &Modem{config: config}
}

// Initialize opens the transport and brings the module to a known
// state. It is idempotent: once the modem is Ready, Initialize returns
// immediately without issuing any AT traffic.
//
// The module is probed with AT until it answers OK, then switched to
// SMS text mode. If the liveness probe exhausts its attempts the modem
// stays uninitialized and ErrNotResponding is returned.
func (m *Modem) Initialize(ctx context.Context) error {
	if m.closed {
		return ErrAlreadyClosed
	}
	if m.state == StateReady {
		return nil
	}
	m.state = StateInitializing

	if m.transport == nil {
		transport, err := m.config.Dialer.Dial(ctx)
		if err != nil {
			m.state = StateUninitialized
			return fmt.Errorf("dial transport: %w", err)
		}
		m.transport = transport
	}

	alive := false
	for attempt := 0; attempt < m.config.LivenessAttempts; attempt++ {
		if _, err := m.Execute(ctx, at.CmdAt, at.OK, m.config.ATTimeout); err == nil {
			alive = true
			break
		}
		m.sleep(ctx, m.config.LivenessInterval)
	}
	if !alive {
		m.state = StateUninitialized
		return ErrNotResponding
	}

	// Text mode configuration is best effort; the module keeps its
	// stored profile when a command is refused.
	if _, err := m.Execute(ctx, at.CmdSetTextMode, at.OK, m.config.ATTimeout); err != nil {
		m.config.Logger.Warn("set SMS text mode failed", "error", err)
	}
	if _, err := m.Execute(ctx, at.CmdSMSParams, at.OK, m.config.ATTimeout); err != nil {
		m.config.Logger.Warn("set SMS parameters failed", "error", err)
	}

	m.state = StateReady
	m.rfOn = true // the module boots with RF enabled
	return nil
}

// Execute sends one AT command terminated by a line break and waits
// until the accumulated response contains expect (success), contains
// ERROR (ErrDeviceError), or the timeout elapses (ErrTimeout). The
// accumulated response is returned in every case.
//
// Pending input is drained first so a previous transaction's tail
// cannot satisfy this one. There is no internal retry.
func (m *Modem) Execute(ctx context.Context, cmd, expect string, timeout time.Duration) (string, error) {
	if err := m.guard(); err != nil {
		return "", err
	}

	m.DrainInput()

	if _, err := m.transport.Write([]byte(cmd + at.CRLF)); err != nil {
		return "", fmt.Errorf("write command %q: %w", cmd, err)
	}
	return m.waitFor(ctx, expect, timeout)
}

// Send writes payload verbatim, without a trailing line break, and
// waits like Execute. It exists for the SMS body, which is terminated
// by a control byte instead of a line break.
func (m *Modem) Send(ctx context.Context, payload, expect string, timeout time.Duration) (string, error) {
	if err := m.guard(); err != nil {
		return "", err
	}

	if _, err := m.transport.Write([]byte(payload)); err != nil {
		return "", fmt.Errorf("write payload: %w", err)
	}
	return m.waitFor(ctx, expect, timeout)
}

func (m *Modem) waitFor(ctx context.Context, expect string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 256)
	var response strings.Builder

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return response.String(), err
		}

		n, err := m.transport.Read(buf)
		if n > 0 {
			response.Write(buf[:n])
			accumulated := response.String()
			if strings.Contains(accumulated, expect) {
				return accumulated, nil
			}
			if strings.Contains(accumulated, at.ERROR) {
				return accumulated, ErrDeviceError
			}
			continue
		}
		if err != nil {
			return response.String(), fmt.Errorf("read response: %w", err)
		}
		time.Sleep(m.config.PollInterval)
	}
	return response.String(), ErrTimeout
}

// DrainInput discards everything the module has already written.
func (m *Modem) DrainInput() {
	if m.transport == nil {
		return
	}
	buf := make([]byte, 256)
	for {
		n, err := m.transport.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}

// CancelPending escapes a possibly pending SMS prompt and clears the
// channel. Safe to call when nothing is pending.
func (m *Modem) CancelPending(ctx context.Context) error {
	if err := m.guard(); err != nil {
		return err
	}
	if _, err := m.transport.Write([]byte(at.Esc)); err != nil {
		return fmt.Errorf("write escape: %w", err)
	}
	m.sleep(ctx, m.config.CancelDelay)
	m.DrainInput()
	return nil
}

// Responding probes the module with a short AT/OK exchange.
func (m *Modem) Responding(ctx context.Context) bool {
	_, err := m.Execute(ctx, at.CmdAt, at.OK, time.Second)
	return err == nil
}

// EnableRF switches the cellular radio on and then waits, bounded by
// the RF wait budget, for the module to reattach to the network. A
// missed reattach is logged but not an error; callers that need the
// network poll registration themselves.
func (m *Modem) EnableRF(ctx context.Context) error {
	if _, err := m.Execute(ctx, at.CmdRFOn, at.OK, m.config.NetworkTimeout); err != nil {
		return fmt.Errorf("enable RF: %w", err)
	}
	m.rfOn = true

	for attempt := 0; attempt < m.config.RFWaitAttempts; attempt++ {
		if m.registered(ctx) {
			return nil
		}
		m.sleep(ctx, m.config.RFWaitInterval)
	}
	m.config.Logger.Warn("network not reattached after RF enable")
	return nil
}

// DisableRF switches the cellular radio off (minimum functionality
// mode). Required before powering the GNSS engine.
func (m *Modem) DisableRF(ctx context.Context) error {
	if _, err := m.Execute(ctx, at.CmdRFOff, at.OK, m.config.NetworkTimeout); err != nil {
		return fmt.Errorf("disable RF: %w", err)
	}
	m.rfOn = false
	return nil
}

// EnableGNSS powers the GNSS engine.
func (m *Modem) EnableGNSS(ctx context.Context) error {
	if _, err := m.Execute(ctx, at.CmdGNSSPowerOn, at.OK, m.config.NetworkTimeout); err != nil {
		return fmt.Errorf("enable GNSS: %w", err)
	}
	m.gnssOn = true
	return nil
}

// DisableGNSS powers the GNSS engine down.
func (m *Modem) DisableGNSS(ctx context.Context) error {
	if _, err := m.Execute(ctx, at.CmdGNSSPowerOff, at.OK, m.config.NetworkTimeout); err != nil {
		return fmt.Errorf("disable GNSS: %w", err)
	}
	m.gnssOn = false
	return nil
}

// CheckNetworkRegistration polls AT+CREG? until the module reports home
// or roaming registration, bounded by the registration budget.
func (m *Modem) CheckNetworkRegistration(ctx context.Context) error {
	for attempt := 0; attempt < m.config.RegistrationAttempts; attempt++ {
		if m.registered(ctx) {
			// Operator query is informational only.
			m.Execute(ctx, at.CmdOperator, at.OK, m.config.NetworkTimeout)
			return nil
		}
		m.sleep(ctx, m.config.RegistrationInterval)
	}
	return ErrNotRegistered
}

func (m *Modem) registered(ctx context.Context) bool {
	if _, err := m.Execute(ctx, at.CmdNetworkStatus, at.RegisteredHome, m.config.NetworkTimeout); err == nil {
		return true
	}
	if _, err := m.Execute(ctx, at.CmdNetworkStatus, at.RegisteredRoaming, m.config.NetworkTimeout); err == nil {
		return true
	}
	return false
}

// State reports the lifecycle state.
func (m *Modem) State() State {
	return m.state
}

// RFPowered reports whether the cellular radio was last commanded on.
func (m *Modem) RFPowered() bool {
	return m.rfOn
}

// GNSSPowered reports whether the GNSS engine was last commanded on.
func (m *Modem) GNSSPowered() bool {
	return m.gnssOn
}

// Close releases the transport. The Modem cannot be reused afterwards.
func (m *Modem) Close() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true
	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

func (m *Modem) guard() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	if m.transport == nil {
		return ErrNotInitialized
	}
	return nil
}

func (m *Modem) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
