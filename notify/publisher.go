// Package notify publishes acquired fixes to an MQTT broker so
// dashboards and companion apps can follow the tracker live.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/S-3moticon/Smart-Bike-Tracker/gps"
)

// FixTopic carries one JSON document per acquired fix.
const FixTopic = "biketracker/fix"

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds, per paho convention
)

// Publisher forwards fixes to an MQTT broker. Publishing is best
// effort: the tracker keeps running when the broker is unreachable.
type Publisher struct {
	client mqtt.Client
	logger *slog.Logger
}

// Connect dials the broker and returns a ready publisher.
func Connect(brokerURL, clientID string, logger *slog.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", brokerURL, err)
	}
	logger.Info("connected to MQTT broker", "broker", brokerURL, "clientID", clientID)

	return &Publisher{client: client, logger: logger}, nil
}

// PublishFix serializes the fix and publishes it at QoS 1 so a
// briefly absent subscriber still receives it.
func (p *Publisher) PublishFix(fix gps.Fix) error {
	payload, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("encode fix: %w", err)
	}

	token := p.client.Publish(FixTopic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", FixTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", FixTopic, err)
	}
	p.logger.Debug("fix published", "topic", FixTopic)
	return nil
}

// Close flushes in-flight messages and disconnects.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}
