package gps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/S-3moticon/Smart-Bike-Tracker/at"
	"github.com/S-3moticon/Smart-Bike-Tracker/modem"
	"github.com/S-3moticon/Smart-Bike-Tracker/store"
)

// AcquireConfig holds the acquisition timing budget. The defaults match
// the SIM7070G's cold-fix behavior; tests shrink them.
type AcquireConfig struct {
	// SettleTime is how long the GNSS engine is given after power-on
	// before the first fix query.
	SettleTime time.Duration
	// FixTimeout bounds one AT+CGNSINF transaction.
	FixTimeout time.Duration
	// RetryDelay is the wait between unsuccessful fix queries.
	RetryDelay time.Duration
	// RestoreDelay is the pause between GNSS power-down and RF power-up
	// when restoring the modem.
	RestoreDelay time.Duration
}

func (c *AcquireConfig) setDefaults() {
	if c.SettleTime == 0 {
		c.SettleTime = 2 * time.Second
	}
	if c.FixTimeout == 0 {
		c.FixTimeout = 2 * time.Second
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.RestoreDelay == 0 {
		c.RestoreDelay = 500 * time.Millisecond
	}
}

// Acquirer drives the modem through a complete fix acquisition cycle.
//
// The GNSS engine and the cellular radio share the module's RF front
// end, so every acquisition is bracketed by a mode switch in (RF off,
// GNSS on) and a mode switch out (GNSS off, RF on). The switches cost
// seconds and dominate the latency of the whole cycle; callers budget
// for that, not for the fix query itself.
type Acquirer struct {
	modem  *modem.Modem
	store  store.Store
	logger *slog.Logger
	config AcquireConfig
}

// NewAcquirer creates an Acquirer persisting successful fixes into s.
func NewAcquirer(m *modem.Modem, s store.Store, logger *slog.Logger, config AcquireConfig) *Acquirer {
	config.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{modem: m, store: s, logger: logger, config: config}
}

// Acquire produces one valid fix or a definitive failure.
//
// The modem is initialized if needed, switched out of RF mode into GNSS
// mode, and polled up to maxAttempts times for a fix. Whatever the
// outcome, the modem is restored to RF mode before Acquire returns. On
// success the fix is persisted as the last known location.
func (a *Acquirer) Acquire(ctx context.Context, maxAttempts int) (Fix, error) {
	if a.modem.State() != modem.StateReady {
		if err := a.modem.Initialize(ctx); err != nil {
			return Fix{}, fmt.Errorf("acquire fix: %w", err)
		}
	}

	if err := a.modem.DisableRF(ctx); err != nil {
		a.logger.Warn("RF disable before acquisition failed", "error", err)
	}
	if err := a.modem.EnableGNSS(ctx); err != nil {
		// Leave the modem reachable rather than stranded in a half
		// switched state.
		if rferr := a.modem.EnableRF(ctx); rferr != nil {
			a.logger.Warn("RF restore after GNSS failure failed", "error", rferr)
		}
		return Fix{}, fmt.Errorf("acquire fix: %w", err)
	}

	a.sleep(ctx, a.config.SettleTime)

	fix, acquired := a.poll(ctx, maxAttempts)
	a.restore(ctx)

	if !acquired {
		return Fix{}, ErrNoFix
	}

	if err := SaveLastFix(a.store, fix); err != nil {
		a.logger.Warn("persist last fix failed", "error", err)
	}
	a.logger.Info("GPS fix acquired",
		"lat", fix.Latitude, "lon", fix.Longitude, "timestamp", fix.Timestamp)
	return fix, nil
}

func (a *Acquirer) poll(ctx context.Context, maxAttempts int) (Fix, bool) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return Fix{}, false
		}

		response, err := a.modem.Execute(ctx, at.CmdFixQuery, at.OK, a.config.FixTimeout)
		if err == nil {
			fix, perr := ParseFixReport(response)
			if perr == nil {
				return fix, true
			}
			a.logger.Debug("no fix yet", "attempt", attempt+1, "error", perr)
		}
		a.sleep(ctx, a.config.RetryDelay)
	}
	return Fix{}, false
}

// restore always puts the modem back into RF mode, whatever the
// acquisition outcome was.
func (a *Acquirer) restore(ctx context.Context) {
	if err := a.modem.DisableGNSS(ctx); err != nil {
		a.logger.Warn("GNSS power-down failed", "error", err)
	}
	a.sleep(ctx, a.config.RestoreDelay)
	if err := a.modem.EnableRF(ctx); err != nil {
		a.logger.Warn("RF restore failed", "error", err)
	}
}

func (a *Acquirer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
