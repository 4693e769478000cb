package gps

import (
	"fmt"

	"github.com/S-3moticon/Smart-Bike-Tracker/store"
)

// DataNamespace is the store partition holding the last known fix.
const DataNamespace = "gps-data"

// SaveLastFix persists every field of the fix. The 64-bit timestamp is
// split into two 32-bit halves because the flash store only holds
// 32-bit integers.
func SaveLastFix(s store.Store, fix Fix) error {
	ns, err := s.Namespace(DataNamespace)
	if err != nil {
		return fmt.Errorf("open %s: %w", DataNamespace, err)
	}
	defer ns.Close()

	puts := []error{
		ns.PutString("lat", fix.Latitude),
		ns.PutString("lon", fix.Longitude),
		ns.PutString("datetime", fix.Datetime),
		ns.PutString("alt", fix.Altitude),
		ns.PutString("speed", fix.Speed),
		ns.PutString("course", fix.Course),
		ns.PutBool("valid", fix.Valid),
		ns.PutUint32("timestamp_hi", uint32(uint64(fix.Timestamp)>>32)),
		ns.PutUint32("timestamp_lo", uint32(uint64(fix.Timestamp))),
	}
	for _, err := range puts {
		if err != nil {
			return fmt.Errorf("save last fix: %w", err)
		}
	}
	return nil
}

// LoadLastFix reads the last known fix back. A store that was never
// written yields a zero Fix with Valid false; that is an absent value,
// not an error.
func LoadLastFix(s store.Store) (Fix, error) {
	ns, err := s.Namespace(DataNamespace)
	if err != nil {
		return Fix{}, fmt.Errorf("open %s: %w", DataNamespace, err)
	}
	defer ns.Close()

	hi := ns.GetUint32("timestamp_hi", 0)
	lo := ns.GetUint32("timestamp_lo", 0)

	return Fix{
		Latitude:  ns.GetString("lat", ""),
		Longitude: ns.GetString("lon", ""),
		Datetime:  ns.GetString("datetime", ""),
		Altitude:  ns.GetString("alt", ""),
		Speed:     ns.GetString("speed", ""),
		Course:    ns.GetString("course", ""),
		Valid:     ns.GetBool("valid", false),
		Timestamp: int64(uint64(hi)<<32 | uint64(lo)),
	}, nil
}
