package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/S-3moticon/Smart-Bike-Tracker/history"
	"github.com/S-3moticon/Smart-Bike-Tracker/modem"
	"github.com/S-3moticon/Smart-Bike-Tracker/notify"
	"github.com/S-3moticon/Smart-Bike-Tracker/store"
)

func main() {
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("redis-url", "", "Redis URL for the backing store (empty: in-memory)")
	flag.String("mqtt-broker", "", "MQTT broker for fix publishing (empty: disabled)")
	flag.String("phone-number", "", "Default alert recipient")
	flag.Uint("sms-interval", 300, "Minimum seconds between alerts")
	flag.Int("gps-max-attempts", 30, "Fix-query retries per GPS acquisition")
	configFile := flag.String("config", "", "Path to a YAML configuration file")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var backing store.Store
	if config.RedisURL != "" {
		redisStore, err := store.NewRedis(config.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		backing = redisStore
		logger.Info("Using redis store", "url", config.RedisURL)
	} else {
		backing = store.NewMemory()
		logger.Warn("Using in-memory store; data will not survive restarts")
	}

	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(modem.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		WithLogger(logger.With("component", "modem")).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}
	m := modem.New(modemConfig)

	if err := m.Initialize(context.Background()); err != nil {
		logger.Error("Failed to initialize modem", "error", err)
		os.Exit(1)
	}

	hist, err := history.Open(backing)
	if err != nil {
		logger.Error("Failed to open history log", "error", err)
		os.Exit(1)
	}

	var publisher *notify.Publisher
	if config.MQTTBroker != "" {
		publisher, err = notify.Connect(config.MQTTBroker, "bike-tracker", logger.With("component", "notify"))
		if err != nil {
			// Fix publishing is best effort; keep tracking without it.
			logger.Warn("MQTT broker unreachable, publishing disabled", "error", err)
			publisher = nil
		}
	}

	tracker := NewTracker(m, backing, hist, publisher, logger.With("component", "tracker"), TrackerConfig{
		Defaults: Settings{
			PhoneNumber:   config.PhoneNumber,
			SMSInterval:   config.SMSInterval,
			UserPresent:   true,
			AlertsEnabled: true,
		},
		MaxAttempts: config.GPSMaxAttempts,
	})

	logger.Info("Starting bike tracker", "serialPort", config.SerialPort)

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:  logger.With("component", "server"),
			Tracker: tracker,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Drain in-flight requests before tearing down the modem they use.
	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	if publisher != nil {
		publisher.Close()
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
		os.Exit(1)
	}
}
