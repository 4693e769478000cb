package modem

import (
	"log/slog"
	"time"
)

// Config holds the modem tuning knobs. All durations describe polling
// budgets; the defaults mirror the SIM7070G datasheet timings and can
// be shrunk to milliseconds in tests.
type Config struct {
	Dialer Dialer
	Logger *slog.Logger

	// ATTimeout is the default transaction budget for ordinary commands.
	ATTimeout time.Duration
	// NetworkTimeout is the budget for RF/GNSS power and registration
	// commands, which answer slower than plain queries.
	NetworkTimeout time.Duration
	// PollInterval is the spacing between reads while a transaction
	// waits for its expected token.
	PollInterval time.Duration
	// CancelDelay is how long the module is given to drop out of a
	// pending SMS prompt after ESC.
	CancelDelay time.Duration

	// LivenessAttempts/LivenessInterval bound the AT->OK probe loop
	// during initialization.
	LivenessAttempts int
	LivenessInterval time.Duration

	// RegistrationAttempts/RegistrationInterval bound the AT+CREG? loop.
	RegistrationAttempts int
	RegistrationInterval time.Duration

	// RFWaitAttempts/RFWaitInterval bound the post-EnableRF wait for the
	// module to reattach to the network.
	RFWaitAttempts int
	RFWaitInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.ATTimeout == 0 {
		c.ATTimeout = 2 * time.Second
	}
	if c.NetworkTimeout == 0 {
		c.NetworkTimeout = 5 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	if c.CancelDelay == 0 {
		c.CancelDelay = time.Second
	}
	if c.LivenessAttempts == 0 {
		c.LivenessAttempts = 5
	}
	if c.LivenessInterval == 0 {
		c.LivenessInterval = time.Second
	}
	if c.RegistrationAttempts == 0 {
		c.RegistrationAttempts = 30
	}
	if c.RegistrationInterval == 0 {
		c.RegistrationInterval = 2 * time.Second
	}
	if c.RFWaitAttempts == 0 {
		c.RFWaitAttempts = 10
	}
	if c.RFWaitInterval == 0 {
		c.RFWaitInterval = time.Second
	}
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

// ConfigBuilder assembles a Config fluently.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder preloaded with nothing; defaults
// are filled in by Build.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.ATTimeout = d
	return b
}

func (b *ConfigBuilder) WithNetworkTimeout(d time.Duration) *ConfigBuilder {
	b.config.NetworkTimeout = d
	return b
}

func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.PollInterval = d
	return b
}

func (b *ConfigBuilder) WithCancelDelay(d time.Duration) *ConfigBuilder {
	b.config.CancelDelay = d
	return b
}

func (b *ConfigBuilder) WithLivenessPolling(attempts int, interval time.Duration) *ConfigBuilder {
	b.config.LivenessAttempts = attempts
	b.config.LivenessInterval = interval
	return b
}

func (b *ConfigBuilder) WithRegistrationPolling(attempts int, interval time.Duration) *ConfigBuilder {
	b.config.RegistrationAttempts = attempts
	b.config.RegistrationInterval = interval
	return b
}

func (b *ConfigBuilder) WithRFWaitPolling(attempts int, interval time.Duration) *ConfigBuilder {
	b.config.RFWaitAttempts = attempts
	b.config.RFWaitInterval = interval
	return b
}

// Build validates the config and applies defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	config.setDefaults()
	return config, nil
}
