package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order
	// to establish a connection to the module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when a command is issued before the
	// transport has been opened via Initialize.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when an operation is attempted on a
	// Modem that has been closed. A closed Modem cannot be reused.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrTimeout is returned by Execute when the expected token did not
	// appear within the transaction budget. Always recoverable; retry
	// policy belongs to the caller.
	ErrTimeout = errors.New("AT command timeout")

	// ErrDeviceError is returned when the module answered with ERROR.
	// Treated like a timeout for control flow, but it ends the wait loop
	// early.
	ErrDeviceError = errors.New("AT command rejected")

	// ErrNotResponding is returned by Initialize when the module never
	// answered the liveness probe. The modem stays uninitialized.
	ErrNotResponding = errors.New("module not responding")

	// ErrNotRegistered is returned when network registration polling
	// exhausted its attempts.
	ErrNotRegistered = errors.New("network registration failed")
)
