package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/S-3moticon/Smart-Bike-Tracker/gps"
	"github.com/S-3moticon/Smart-Bike-Tracker/history"
	"github.com/S-3moticon/Smart-Bike-Tracker/modem"
	"github.com/S-3moticon/Smart-Bike-Tracker/notify"
	"github.com/S-3moticon/Smart-Bike-Tracker/sms"
	"github.com/S-3moticon/Smart-Bike-Tracker/store"
)

// SettingsNamespace is the store partition holding runtime settings
// changed over the HTTP API.
const SettingsNamespace = "tracker-config"

// ErrInvalidCoordinates is returned when a reported point carries the
// 0,0 placeholder instead of a real position.
var ErrInvalidCoordinates = errors.New("coordinates must be non-zero")

// Settings are the runtime-adjustable knobs, persisted across
// restarts.
type Settings struct {
	PhoneNumber   string `json:"phoneNumber"`
	SMSInterval   uint32 `json:"smsInterval"`
	UserPresent   bool   `json:"userPresent"`
	AlertsEnabled bool   `json:"alertsEnabled"`
}

// Tracker ties the modem, the GPS acquirer, the history log and the
// SMS sender into one sequential core. The modem is a single shared
// resource and GPS acquisition and SMS sending must never interleave,
// so every entry point takes the tracker mutex; concurrent HTTP
// requests queue up behind it.
type Tracker struct {
	modem     *modem.Modem
	store     store.Store
	acquirer  *gps.Acquirer
	history   *history.Log
	sender    *sms.Sender
	publisher *notify.Publisher
	logger    *slog.Logger

	mu          sync.Mutex
	settings    Settings
	maxAttempts int
}

// TrackerConfig bundles the core's construction parameters. The zero
// value of the embedded timing configs picks production defaults.
type TrackerConfig struct {
	// Defaults seed the runtime settings when nothing was persisted.
	Defaults Settings
	// MaxAttempts bounds fix-query retries per acquisition.
	MaxAttempts int
	// Acquire and SMS carry the timing budgets of the two slow paths.
	Acquire gps.AcquireConfig
	SMS     sms.Config
}

// NewTracker wires the core together and restores persisted settings,
// falling back to the configured defaults for anything never saved.
func NewTracker(m *modem.Modem, s store.Store, hist *history.Log, publisher *notify.Publisher, logger *slog.Logger, config TrackerConfig) *Tracker {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 30
	}
	t := &Tracker{
		modem:       m,
		store:       s,
		acquirer:    gps.NewAcquirer(m, s, logger.With("component", "gps"), config.Acquire),
		history:     hist,
		sender:      sms.NewSender(m, s, logger.With("component", "sms"), config.SMS),
		publisher:   publisher,
		logger:      logger,
		maxAttempts: config.MaxAttempts,
	}
	t.settings = t.loadSettings(config.Defaults)
	return t
}

// AcquireAndLog runs one acquisition cycle: get a fix, log it, and
// publish it. History and broker failures are reported but do not
// discard the fix.
func (t *Tracker) AcquireAndLog(ctx context.Context) (gps.Fix, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.acquireAndLog(ctx)
}

func (t *Tracker) acquireAndLog(ctx context.Context) (gps.Fix, error) {
	fix, err := t.acquirer.Acquire(ctx, t.maxAttempts)
	if err != nil {
		return gps.Fix{}, err
	}

	entry, err := historyEntry(fix)
	if err != nil {
		t.logger.Warn("fix not logged", "error", err)
	} else if err := t.history.Append(entry); err != nil {
		t.logger.Warn("history append failed", "error", err)
	}

	if t.publisher != nil {
		if err := t.publisher.PublishFix(fix); err != nil {
			t.logger.Warn("fix not published", "error", err)
		}
	}
	return fix, nil
}

// Alert acquires a fresh fix if possible and sends the matching alert
// pair to the configured number. Without a current fix it falls back
// to the last persisted one, or to the no-location alert.
func (t *Tracker) Alert(ctx context.Context, compose func(gps.Fix, bool, uint32) sms.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.settings.PhoneNumber == "" {
		return errors.New("no phone number configured")
	}

	fix, err := t.acquireAndLog(ctx)
	if err != nil {
		t.logger.Warn("no fresh fix for alert", "error", err)
		cached, loadErr := gps.LoadLastFix(t.store)
		if loadErr != nil {
			t.logger.Warn("no cached fix either", "error", loadErr)
		}
		msg := sms.NoLocationAvailable(cached, t.settings.UserPresent, t.settings.SMSInterval)
		return t.sender.SendAlert(ctx, t.settings.PhoneNumber, msg)
	}

	msg := compose(fix, t.settings.UserPresent, t.settings.SMSInterval)
	return t.sender.SendAlert(ctx, t.settings.PhoneNumber, msg)
}

// ShouldAlert reports whether alerting is enabled and the SMS
// throttle allows another alert.
func (t *Tracker) ShouldAlert() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings.AlertsEnabled && t.sender.ShouldSend(t.settings.SMSInterval)
}

// ReportLocation appends a phone-reported point to the history log.
// The timestamp is taken from the wall clock since the phone's blob
// carries no time of its own.
func (t *Tracker) ReportLocation(lat, lon, speed float64) error {
	if lat == 0 && lon == 0 {
		return ErrInvalidCoordinates
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.history.Append(history.Entry{
		Lat:       lat,
		Lon:       lon,
		Speed:     speed,
		Timestamp: time.Now().UnixMilli(),
		Source:    history.SourcePhone,
	})
}

// HistoryPage renders one page of the history log as JSON.
func (t *Tracker) HistoryPage(pageIndex, pageSize int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.RenderPage(pageIndex, pageSize)
}

// LastFix loads the last persisted fix.
func (t *Tracker) LastFix() (gps.Fix, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gps.LoadLastFix(t.store)
}

// Settings returns the current runtime settings.
func (t *Tracker) Settings() Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// UpdateSettings validates, applies and persists new settings.
func (t *Tracker) UpdateSettings(settings Settings) error {
	if settings.SMSInterval == 0 {
		return errors.New("smsInterval must be positive")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ns, err := t.store.Namespace(SettingsNamespace)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	defer ns.Close()

	puts := []error{
		ns.PutString("phoneNumber", settings.PhoneNumber),
		ns.PutUint32("smsInterval", settings.SMSInterval),
		ns.PutBool("userPresent", settings.UserPresent),
		ns.PutBool("alertsEnabled", settings.AlertsEnabled),
	}
	for _, err := range puts {
		if err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}

	t.settings = settings
	return nil
}

func (t *Tracker) loadSettings(defaults Settings) Settings {
	ns, err := t.store.Namespace(SettingsNamespace)
	if err != nil {
		t.logger.Warn("cannot load settings", "error", err)
		return defaults
	}
	defer ns.Close()

	return Settings{
		PhoneNumber:   ns.GetString("phoneNumber", defaults.PhoneNumber),
		SMSInterval:   ns.GetUint32("smsInterval", defaults.SMSInterval),
		UserPresent:   ns.GetBool("userPresent", defaults.UserPresent),
		AlertsEnabled: ns.GetBool("alertsEnabled", defaults.AlertsEnabled),
	}
}

// historyEntry converts a fix's string fields into a log entry.
func historyEntry(fix gps.Fix) (history.Entry, error) {
	lat, err := parseCoord(fix.Latitude)
	if err != nil {
		return history.Entry{}, fmt.Errorf("latitude %q: %w", fix.Latitude, err)
	}
	lon, err := parseCoord(fix.Longitude)
	if err != nil {
		return history.Entry{}, fmt.Errorf("longitude %q: %w", fix.Longitude, err)
	}
	speed, err := parseCoord(fix.Speed)
	if err != nil {
		speed = 0
	}
	return history.Entry{
		Lat:       lat,
		Lon:       lon,
		Speed:     speed,
		Timestamp: fix.Timestamp,
		Source:    history.SourceModem,
	}, nil
}

func parseCoord(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Status is the health snapshot served over HTTP.
type Status struct {
	ModemState    string    `json:"modemState"`
	RFPowered     bool      `json:"rfPowered"`
	GNSSPowered   bool      `json:"gnssPowered"`
	UserPresent   bool      `json:"userPresent"`
	HistoryPoints int       `json:"historyPoints"`
	LastSMS       time.Time `json:"lastSMS,omitzero"`
}

// Status reports the current state of the core.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		ModemState:    t.modem.State().String(),
		UserPresent:   t.settings.UserPresent,
		RFPowered:     t.modem.RFPowered(),
		GNSSPowered:   t.modem.GNSSPowered(),
		HistoryPoints: t.history.Count(),
		LastSMS:       t.sender.LastSend(),
	}
}
