// Package gps acquires position fixes from the SIM7070G GNSS engine
// and keeps the last known fix in the tracker's store.
package gps

import (
	"errors"
	"fmt"

	"github.com/S-3moticon/Smart-Bike-Tracker/at"
)

var (
	// ErrNoReport is returned when a response carries no CGNSINF record.
	ErrNoReport = errors.New("no GNSS report in response")

	// ErrNoFix is returned when the GNSS engine is running but has not
	// acquired a usable position yet.
	ErrNoFix = errors.New("no GPS fix")
)

// zeroCoordinate is what the module reports for an unset coordinate.
const zeroCoordinate = "0.000000"

// Fix is one GPS reading. The positional fields are pass-through
// strings exactly as the module reported them; Timestamp is derived
// from Datetime via NormalizeDatetime.
type Fix struct {
	Latitude  string `json:"lat"`
	Longitude string `json:"lon"`
	Datetime  string `json:"datetime"`
	Altitude  string `json:"alt"`
	Speed     string `json:"speed"`
	Course    string `json:"course"`
	Valid     bool   `json:"valid"`
	Timestamp int64  `json:"timestamp"`
}

// GeoURI renders the fix as a geo: URI, the form map applications
// auto-recognize. Empty for an invalid fix.
func (f Fix) GeoURI() string {
	if !f.Valid {
		return ""
	}
	return fmt.Sprintf("geo:%s,%s", f.Latitude, f.Longitude)
}

// ParseFixReport extracts a Fix from a raw AT+CGNSINF response.
//
// The record is a colon-prefixed comma-separated line; a fix is present
// only when the first two fields (engine running, fix acquired) are
// both 1. Fields at positions 2..7 map to datetime, latitude,
// longitude, altitude, speed and course. A fix whose coordinates are
// empty or the literal zero coordinate is reported as ErrNoFix rather
// than returned half-valid.
func ParseFixReport(response string) (Fix, error) {
	payload, ok := at.Payload(response, at.FixReportPrefix)
	if !ok {
		return Fix{}, ErrNoReport
	}

	fields := at.Fields(payload)
	if len(fields) < 8 {
		return Fix{}, fmt.Errorf("%w: truncated record %q", ErrNoReport, payload)
	}
	if fields[0] != "1" || fields[1] != "1" {
		return Fix{}, ErrNoFix
	}

	fix := Fix{
		Datetime:  fields[2],
		Latitude:  fields[3],
		Longitude: fields[4],
		Altitude:  fields[5],
		Speed:     fields[6],
		Course:    fields[7],
	}

	fix.Valid = fix.Latitude != "" && fix.Longitude != "" &&
		fix.Latitude != zeroCoordinate && fix.Longitude != zeroCoordinate
	if !fix.Valid {
		return fix, ErrNoFix
	}

	fix.Timestamp = NormalizeDatetime(fix.Datetime)
	return fix, nil
}
