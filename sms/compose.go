package sms

import (
	"fmt"
	"strings"

	"github.com/S-3moticon/Smart-Bike-Tracker/gps"
)

// Message is an SMS pair: a bare geo URI that map applications
// auto-recognize, then a human-readable status text. The geo URI must
// be the whole first message so nothing precedes it on the first line.
type Message struct {
	First  string
	Second string
}

// LocationUpdate composes a periodic position report.
func LocationUpdate(fix gps.Fix, userPresent bool, intervalSeconds uint32) Message {
	return Message{
		First:  fix.GeoURI(),
		Second: statusText("Location Update", fix, userPresent, intervalSeconds),
	}
}

// DisconnectStatus composes the alert sent when the paired phone
// drops off, carrying the last position and device status.
func DisconnectStatus(fix gps.Fix, userPresent bool, intervalSeconds uint32) Message {
	return Message{
		First:  fix.GeoURI(),
		Second: statusText("Disconnect Alert", fix, userPresent, intervalSeconds),
	}
}

// NoLocationAvailable composes the alert sent when no current fix
// could be acquired. With a cached fix the pair reports that position
// marked as outdated; without one it reports that no position was
// ever acquired.
func NoLocationAvailable(cached gps.Fix, userPresent bool, intervalSeconds uint32) Message {
	if !cached.Valid {
		var b strings.Builder
		b.WriteString("No GPS fix acquired\n")
		b.WriteString("No location data available yet\n\n")
		writeDeviceStatus(&b, userPresent, intervalSeconds)
		return Message{First: "Bike Tracker Alert", Second: b.String()}
	}

	var b strings.Builder
	b.WriteString("No current GPS fix\n")
	b.WriteString("Last known location (outdated):\n")
	fmt.Fprintf(&b, "Location: %s,%s\n", cached.Latitude, cached.Longitude)
	fmt.Fprintf(&b, "Speed: %s\n\n", speedOrNA(cached))
	writeDeviceStatus(&b, userPresent, intervalSeconds)
	return Message{First: cached.GeoURI(), Second: b.String()}
}

// Test composes a connectivity test pair.
func Test(fix gps.Fix, userPresent bool, intervalSeconds uint32) Message {
	if !fix.Valid {
		var b strings.Builder
		b.WriteString("Bike Tracker Test SMS\n")
		b.WriteString("System operational\n\n")
		writeDeviceStatus(&b, userPresent, intervalSeconds)
		return Message{First: "Bike Tracker Test SMS", Second: b.String()}
	}
	return Message{
		First:  fix.GeoURI(),
		Second: statusText("Test Alert", fix, userPresent, intervalSeconds),
	}
}

func statusText(header string, fix gps.Fix, userPresent bool, intervalSeconds uint32) string {
	var b strings.Builder
	b.WriteString("If map did not load, copy coordinates to your map app\n")
	fmt.Fprintf(&b, "Location: %s,%s\n", fix.Latitude, fix.Longitude)
	fmt.Fprintf(&b, "Speed: %s\n\n", speedOrNA(fix))
	b.WriteString(header)
	b.WriteString("\n")
	writeDeviceStatus(&b, userPresent, intervalSeconds)
	return b.String()
}

func writeDeviceStatus(b *strings.Builder, userPresent bool, intervalSeconds uint32) {
	b.WriteString("Device Status\n")
	if userPresent {
		b.WriteString("User: Present\n")
	} else {
		b.WriteString("User: Away\n")
	}
	fmt.Fprintf(b, "SMS Interval: %d sec", intervalSeconds)
}

func speedOrNA(fix gps.Fix) string {
	if fix.Speed == "" {
		return "N/A"
	}
	return fix.Speed + " km/h"
}
