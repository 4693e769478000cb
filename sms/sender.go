// Package sms composes and sends the tracker's alert messages over
// the cellular modem.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/S-3moticon/Smart-Bike-Tracker/at"
	"github.com/S-3moticon/Smart-Bike-Tracker/modem"
	"github.com/S-3moticon/Smart-Bike-Tracker/store"
)

// DataNamespace is the store partition holding the SMS bookkeeping.
const DataNamespace = "sms-data"

// Config carries the timing budgets of an SMS transaction.
type Config struct {
	// CommandTimeout bounds plain command/OK exchanges.
	CommandTimeout time.Duration
	// PromptTimeout bounds the wait for the body prompt after the
	// addressed-send command.
	PromptTimeout time.Duration
	// FirstConfirmTimeout bounds the wait for the first message's
	// send confirmation. The network is cold at that point, so the
	// budget is generous.
	FirstConfirmTimeout time.Duration
	// SecondConfirmTimeout bounds the second confirmation wait.
	SecondConfirmTimeout time.Duration
	// InterMessageDelay separates the two sends.
	InterMessageDelay time.Duration
	// NetworkSettleDelay follows the registration check before the
	// first send.
	NetworkSettleDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 2 * time.Second
	}
	if c.PromptTimeout == 0 {
		c.PromptTimeout = 3 * time.Second
	}
	if c.FirstConfirmTimeout == 0 {
		c.FirstConfirmTimeout = 30 * time.Second
	}
	if c.SecondConfirmTimeout == 0 {
		c.SecondConfirmTimeout = 15 * time.Second
	}
	if c.InterMessageDelay == 0 {
		c.InterMessageDelay = 3 * time.Second
	}
	if c.NetworkSettleDelay == 0 {
		c.NetworkSettleDelay = 2 * time.Second
	}
}

// Sender sends SMS message pairs and throttles alerting via the
// persisted time of the last successful send.
type Sender struct {
	modem    *modem.Modem
	store    store.Store
	logger   *slog.Logger
	config   Config
	lastSend time.Time
	now      func() time.Time
}

// NewSender builds a sender, restoring the last-send timestamp from
// a previous run.
func NewSender(m *modem.Modem, s store.Store, logger *slog.Logger, config Config) *Sender {
	config.setDefaults()
	sender := &Sender{
		modem:  m,
		store:  s,
		logger: logger,
		config: config,
		now:    time.Now,
	}

	ns, err := s.Namespace(DataNamespace)
	if err != nil {
		logger.Warn("cannot restore last SMS time", "error", err)
		return sender
	}
	defer ns.Close()
	if secs := ns.GetUint32("lastSMS", 0); secs != 0 {
		sender.lastSend = time.Unix(int64(secs), 0)
	}
	return sender
}

// SendPair sends the two messages of the pair as independent AT
// transactions. A failure on the first message fails the whole
// operation; a failure on the second is logged but the pair still
// counts as sent, since the map link already went out.
func (s *Sender) SendPair(ctx context.Context, number string, msg Message) error {
	// Drop whatever half-finished transaction a previous attempt
	// may have left on the wire.
	if err := s.modem.CancelPending(ctx); err != nil {
		return fmt.Errorf("clear pending input: %w", err)
	}
	if !s.modem.Responding(ctx) {
		return fmt.Errorf("send to %s: %w", number, modem.ErrNotResponding)
	}
	if err := s.modem.CheckNetworkRegistration(ctx); err != nil {
		return fmt.Errorf("send to %s: %w", number, err)
	}
	s.sleep(ctx, s.config.NetworkSettleDelay)

	if err := s.sendOne(ctx, number, msg.First, s.config.FirstConfirmTimeout); err != nil {
		return fmt.Errorf("first message to %s: %w", number, err)
	}
	s.updateLastSend()
	s.logger.Info("first SMS sent", "to", number)

	s.sleep(ctx, s.config.InterMessageDelay)

	if err := s.sendOne(ctx, number, msg.Second, s.config.SecondConfirmTimeout); err != nil {
		// Partial success: the geo URI was delivered.
		s.logger.Warn("second SMS failed", "to", number, "error", err)
		return nil
	}
	s.updateLastSend()
	s.logger.Info("second SMS sent", "to", number)
	return nil
}

// SendAlert brackets SendPair with the GNSS/RF handover: the radio
// paths are shared, so GNSS must be off and RF on for the duration,
// and the modem is parked in its low-power RF-off state afterwards.
func (s *Sender) SendAlert(ctx context.Context, number string, msg Message) error {
	if err := s.modem.DisableGNSS(ctx); err != nil {
		s.logger.Warn("disabling GNSS before SMS failed", "error", err)
	}
	if err := s.modem.EnableRF(ctx); err != nil {
		return fmt.Errorf("enable RF for SMS: %w", err)
	}
	defer func() {
		if err := s.modem.DisableRF(ctx); err != nil {
			s.logger.Warn("disabling RF after SMS failed", "error", err)
		}
	}()

	return s.SendPair(ctx, number, msg)
}

// ShouldSend reports whether the throttle interval has elapsed since
// the last successful send. It only answers; the caller decides.
func (s *Sender) ShouldSend(intervalSeconds uint32) bool {
	if s.lastSend.IsZero() {
		return true
	}
	elapsed := s.now().Unix() - s.lastSend.Unix()
	if elapsed < 0 {
		// Clock stepped backwards; treat the stored time as stale.
		s.lastSend = time.Time{}
		return true
	}
	return elapsed >= int64(intervalSeconds)
}

// LastSend returns the time of the last successful send, zero if
// none.
func (s *Sender) LastSend() time.Time {
	return s.lastSend
}

func (s *Sender) sendOne(ctx context.Context, number, body string, confirmTimeout time.Duration) error {
	if _, err := s.modem.Execute(ctx, at.CmdSetTextMode, at.OK, s.config.CommandTimeout); err != nil {
		return fmt.Errorf("set text mode: %w", err)
	}

	sendCmd := fmt.Sprintf("AT+CMGS=%q", number)
	if _, err := s.modem.Execute(ctx, sendCmd, at.Prompt, s.config.PromptTimeout); err != nil {
		// Leave the modem in command mode, not half-way into a
		// message body.
		if cancelErr := s.modem.CancelPending(ctx); cancelErr != nil {
			s.logger.Warn("cancel after missing prompt failed", "error", cancelErr)
		}
		return fmt.Errorf("await body prompt: %w", err)
	}

	response, err := s.modem.Send(ctx, body+at.CtrlZ, at.OK, confirmTimeout)
	if err != nil {
		return fmt.Errorf("await send confirmation: %w", err)
	}
	if !strings.Contains(response, at.SendConfirm) {
		return fmt.Errorf("send not confirmed: %q", strings.TrimSpace(response))
	}
	return nil
}

func (s *Sender) updateLastSend() {
	s.lastSend = s.now()

	ns, err := s.store.Namespace(DataNamespace)
	if err != nil {
		s.logger.Warn("cannot persist last SMS time", "error", err)
		return
	}
	defer ns.Close()
	if err := ns.PutUint32("lastSMS", uint32(s.lastSend.Unix())); err != nil {
		s.logger.Warn("cannot persist last SMS time", "error", err)
	}
}

func (s *Sender) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
