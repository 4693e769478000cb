package sms

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/S-3moticon/Smart-Bike-Tracker/at"
	"github.com/S-3moticon/Smart-Bike-Tracker/modem"
	"github.com/S-3moticon/Smart-Bike-Tracker/store"
)

// smsModule scripts a modem that accepts SMS transactions. Prompts
// and confirmations can be failed per message index to exercise the
// partial-success policy.
type smsModule struct {
	failPrompt  map[int]bool // message index -> swallow the prompt
	failConfirm map[int]bool // message index -> answer ERROR instead of +CMGS
	sent        []string     // delivered bodies
	messages    int
}

func (m *smsModule) respond(payload string) string {
	switch {
	case payload == "AT+CREG?":
		return "\r\n+CREG: 0,1\r\n\r\nOK\r\n"
	case strings.HasPrefix(payload, "AT+CMGS="):
		if m.failPrompt[m.messages] {
			m.messages++
			return ""
		}
		return "\r\n> "
	case strings.HasSuffix(payload, at.CtrlZ):
		index := m.messages
		m.messages++
		if m.failConfirm[index] {
			return "\r\nERROR\r\n"
		}
		m.sent = append(m.sent, strings.TrimSuffix(payload, at.CtrlZ))
		return "\r\n+CMGS: 21\r\n\r\nOK\r\n"
	case payload == at.Esc:
		return ""
	default:
		return "\r\nOK\r\n"
	}
}

type transportDialer struct {
	transport modem.Transport
}

func (d transportDialer) Dial(context.Context) (modem.Transport, error) {
	return d.transport, nil
}

func readyModem(t *testing.T, transport *modem.ScriptedTransport) *modem.Modem {
	t.Helper()

	config, err := modem.NewConfigBuilder().
		WithDialer(transportDialer{transport}).
		WithATTimeout(50 * time.Millisecond).
		WithNetworkTimeout(50 * time.Millisecond).
		WithPollInterval(time.Millisecond).
		WithCancelDelay(time.Millisecond).
		WithLivenessPolling(2, time.Millisecond).
		WithRegistrationPolling(2, time.Millisecond).
		WithRFWaitPolling(1, time.Millisecond).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	m := modem.New(config)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	return m
}

func fastSenderConfig() Config {
	return Config{
		CommandTimeout:       50 * time.Millisecond,
		PromptTimeout:        20 * time.Millisecond,
		FirstConfirmTimeout:  50 * time.Millisecond,
		SecondConfirmTimeout: 50 * time.Millisecond,
		InterMessageDelay:    time.Millisecond,
		NetworkSettleDelay:   time.Millisecond,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSendPair(t *testing.T) {
	msg := Message{First: "geo:45.123456,-122.654321", Second: "status text"}

	t.Run("both messages delivered", func(t *testing.T) {
		module := &smsModule{}
		transport := modem.NewScriptedTransport(module.respond)
		s := NewSender(readyModem(t, transport), store.NewMemory(), discard(), fastSenderConfig())

		if err := s.SendPair(context.Background(), "+639171234567", msg); err != nil {
			t.Fatalf("SendPair() error: %v", err)
		}
		if len(module.sent) != 2 || module.sent[0] != msg.First || module.sent[1] != msg.Second {
			t.Errorf("delivered bodies = %q", module.sent)
		}

		// The addressed-send command quotes the recipient.
		var sendCmds []string
		for _, w := range transport.Writes {
			if strings.HasPrefix(w, "AT+CMGS=") {
				sendCmds = append(sendCmds, w)
			}
		}
		want := `AT+CMGS="+639171234567"`
		if len(sendCmds) != 2 || sendCmds[0] != want {
			t.Errorf("send commands = %q, want two of %q", sendCmds, want)
		}
		if s.LastSend().IsZero() {
			t.Error("last-send time not updated")
		}
	})

	t.Run("first message failure aborts the pair", func(t *testing.T) {
		module := &smsModule{failConfirm: map[int]bool{0: true}}
		transport := modem.NewScriptedTransport(module.respond)
		s := NewSender(readyModem(t, transport), store.NewMemory(), discard(), fastSenderConfig())

		if err := s.SendPair(context.Background(), "+639171234567", msg); err == nil {
			t.Fatal("SendPair() should fail when the first confirmation fails")
		}
		if len(module.sent) != 0 {
			t.Errorf("delivered bodies = %q, want none", module.sent)
		}
		if module.messages != 1 {
			t.Errorf("attempted %d messages, want 1 (second never tried)", module.messages)
		}
		if !s.LastSend().IsZero() {
			t.Error("last-send time updated despite failure")
		}
	})

	t.Run("second prompt failure still succeeds", func(t *testing.T) {
		module := &smsModule{failPrompt: map[int]bool{1: true}}
		transport := modem.NewScriptedTransport(module.respond)
		st := store.NewMemory()
		s := NewSender(readyModem(t, transport), st, discard(), fastSenderConfig())

		if err := s.SendPair(context.Background(), "+639171234567", msg); err != nil {
			t.Fatalf("SendPair() error: %v, want partial success", err)
		}
		if len(module.sent) != 1 || module.sent[0] != msg.First {
			t.Errorf("delivered bodies = %q, want just the geo URI", module.sent)
		}
		if s.LastSend().IsZero() {
			t.Error("last-send time not updated after partial success")
		}

		// The missing prompt must be cancelled, not left dangling.
		last := transport.Writes[len(transport.Writes)-1]
		if last != at.Esc {
			t.Errorf("last write = %q, want the escape byte", last)
		}

		// And the timestamp survives a restart.
		restored := NewSender(readyModem(t, modem.NewScriptedTransport(module.respond)), st, discard(), fastSenderConfig())
		if restored.LastSend().IsZero() {
			t.Error("last-send time not persisted")
		}
	})

	t.Run("unregistered network aborts before sending", func(t *testing.T) {
		transport := modem.NewScriptedTransport(func(payload string) string {
			if payload == "AT+CREG?" {
				return "\r\n+CREG: 0,2\r\n\r\nOK\r\n"
			}
			return "\r\nOK\r\n"
		})
		s := NewSender(readyModem(t, transport), store.NewMemory(), discard(), fastSenderConfig())

		err := s.SendPair(context.Background(), "+639171234567", msg)
		if !errors.Is(err, modem.ErrNotRegistered) {
			t.Fatalf("SendPair() error = %v, want ErrNotRegistered", err)
		}
	})
}

func TestSendAlertPowersRadioDown(t *testing.T) {
	module := &smsModule{}
	transport := modem.NewScriptedTransport(module.respond)
	m := readyModem(t, transport)
	s := NewSender(m, store.NewMemory(), discard(), fastSenderConfig())

	msg := Message{First: "geo:1,2", Second: "x"}
	if err := s.SendAlert(context.Background(), "+639171234567", msg); err != nil {
		t.Fatalf("SendAlert() error: %v", err)
	}
	if m.RFPowered() {
		t.Error("RF still powered after alert")
	}
	if m.GNSSPowered() {
		t.Error("GNSS powered after alert")
	}
	if transport.Writes[len(transport.Writes)-1] != "AT+CFUN=0" {
		t.Errorf("last write = %q, want RF power-down", transport.Writes[len(transport.Writes)-1])
	}
}

func TestShouldSend(t *testing.T) {
	s := NewSender(nil, store.NewMemory(), discard(), fastSenderConfig())

	if !s.ShouldSend(300) {
		t.Error("ShouldSend() = false with no prior send")
	}

	base := time.Unix(1735689600, 0)
	s.lastSend = base
	s.now = func() time.Time { return base.Add(100 * time.Second) }
	if s.ShouldSend(300) {
		t.Error("ShouldSend(300) = true after 100s")
	}
	s.now = func() time.Time { return base.Add(300 * time.Second) }
	if !s.ShouldSend(300) {
		t.Error("ShouldSend(300) = false after exactly 300s")
	}

	// A clock step backwards must not wedge the throttle.
	s.lastSend = base.Add(time.Hour)
	s.now = func() time.Time { return base }
	if !s.ShouldSend(300) {
		t.Error("ShouldSend() = false after clock stepped backwards")
	}
}
