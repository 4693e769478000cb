package modem

import (
	"context"
	"io"
	"time"

	"go.bug.st/serial"
)

//go:generate mockgen -source=transport.go -destination=mock_transport.go -package=modem

// Transport represents an established, bidirectional byte stream to the
// SIM7070G module.
//
// A Transport is assumed to be already connected and ready for use.
// Read must not block indefinitely: when no byte arrives within the
// transport's internal read timeout it returns (0, nil), which is the
// contract serial ports configured with a read timeout follow. The
// command loop relies on this to poll against its own deadline.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to the module.
//
// Dialer abstracts how the connection is created (serial port, TCP
// bridge, or a test double) and is only used while initializing the
// modem. Once a Transport is obtained the Dialer is no longer needed.
type Dialer interface {
	// Dial creates and returns a connected Transport. It may block and
	// should respect cancellation and deadlines provided by the context.
	Dial(ctx context.Context) (Transport, error)
}

// SerialDialer opens the module's UART via go.bug.st/serial.
type SerialDialer struct {
	// PortName is the device path, e.g. "/dev/ttyUSB0".
	PortName string
	// BaudRate defaults to 115200, the SIM7070G default.
	BaudRate int
	// ReadTimeout bounds a single blocking read. Defaults to 200ms.
	ReadTimeout time.Duration
}

// Dial opens the serial port in 8N1 mode with a bounded read timeout so
// that Transport.Read honors the (0, nil) idle contract.
func (d SerialDialer) Dial(_ context.Context) (Transport, error) {
	baud := d.BaudRate
	if baud == 0 {
		baud = 115200
	}
	readTimeout := d.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 200 * time.Millisecond
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}
