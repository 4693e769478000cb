package gps

import (
	"strconv"
	"time"
)

// BaselineMillis is 2024-01-01T00:00:00Z in milliseconds since the Unix
// epoch. It is the fallback for malformed datetimes and the offset
// applied when migrating legacy uptime-based history timestamps.
const BaselineMillis int64 = 1704067200000

// datetimeLen is the significant prefix of the module's datetime
// string, YYYYMMDDHHMMSS. A fractional second suffix may follow and is
// ignored.
const datetimeLen = 14

// NormalizeDatetime converts the module's concatenated local date-time
// string into absolute milliseconds since the Unix epoch.
//
// The input must be at least 14 digits of YYYYMMDDHHMMSS with the year
// in [2020, 2100] and every calendar field in its natural range; any
// malformed input yields BaselineMillis. Day-of-month is only range
// checked against 31, so an impossible date like February 30 normalizes
// forward, which matches the plain days-per-month arithmetic the
// tracker originally shipped with.
func NormalizeDatetime(datetime string) int64 {
	if len(datetime) < datetimeLen {
		return BaselineMillis
	}
	for _, c := range datetime[:datetimeLen] {
		if c < '0' || c > '9' {
			return BaselineMillis
		}
	}

	year := mustInt(datetime[0:4])
	month := mustInt(datetime[4:6])
	day := mustInt(datetime[6:8])
	hour := mustInt(datetime[8:10])
	minute := mustInt(datetime[10:12])
	second := mustInt(datetime[12:14])

	switch {
	case year < 2020 || year > 2100,
		month < 1 || month > 12,
		day < 1 || day > 31,
		hour > 23,
		minute > 59,
		second > 59:
		return BaselineMillis
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC).UnixMilli()
}

func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
