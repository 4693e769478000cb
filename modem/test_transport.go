package modem

import (
	"io"
	"strings"
	"sync"
)

// ScriptedTransport is a test helper that simulates the module for the
// synchronous transaction loop. Each Write is answered by the Respond
// callback; Read then serves the queued reply and returns (0, nil) when
// the queue is empty, matching the serial read-timeout contract.
//
// Exported for use in tests across packages.
type ScriptedTransport struct {
	mu      sync.Mutex
	pending []byte
	closed  bool

	// Respond maps a written payload (command line, SMS body, escape
	// byte) to the bytes the fake module answers with. A nil Respond
	// leaves the module silent.
	Respond func(payload string) string

	// Writes records every payload written, in order, with line breaks
	// stripped.
	Writes []string
}

func NewScriptedTransport(respond func(payload string) string) *ScriptedTransport {
	return &ScriptedTransport{Respond: respond}
}

func (t *ScriptedTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}

	payload := strings.TrimRight(string(p), "\r\n")
	t.Writes = append(t.Writes, payload)
	if t.Respond != nil {
		t.pending = append(t.pending, []byte(t.Respond(payload))...)
	}
	return len(p), nil
}

func (t *ScriptedTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.EOF
	}
	if len(t.pending) == 0 {
		return 0, nil
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *ScriptedTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// CommandCount returns how many payloads were written so far.
func (t *ScriptedTransport) CommandCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Writes)
}
