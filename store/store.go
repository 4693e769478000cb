// Package store provides the namespace-scoped scalar key-value store
// the tracker persists its state into. On the original hardware this is
// the modem board's NVS flash; off-device it is backed by memory or by
// a Redis hash per namespace.
package store

import "errors"

// ErrClosed is returned when a value is written through a namespace
// handle that has already been released.
var ErrClosed = errors.New("store: namespace handle closed")

// Store partitions keys into named namespaces. Opening a namespace
// yields a handle that must be released with Close on every exit path;
// accessors bracket all reads and writes between Namespace and Close.
type Store interface {
	Namespace(name string) (Namespace, error)
}

// Namespace is an open handle onto one partition of the store.
//
// Get accessors take a default that is returned when the key was never
// written: a persistence miss is an absent value, not an error. Put
// accessors report failures of the backing medium.
type Namespace interface {
	GetString(key, def string) string
	PutString(key, value string) error

	GetBool(key string, def bool) bool
	PutBool(key string, value bool) error

	GetUint32(key string, def uint32) uint32
	PutUint32(key string, value uint32) error

	GetUint8(key string, def uint8) uint8
	PutUint8(key string, value uint8) error

	GetFloat64(key string, def float64) float64
	PutFloat64(key string, value float64) error

	// Clear erases every key in the namespace.
	Clear() error

	// Close releases the handle. Closing twice is safe.
	Close() error
}
