// Package history keeps a bounded circular log of GPS points in the
// flash store, newest overwriting oldest once the capacity is reached.
package history

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/S-3moticon/Smart-Bike-Tracker/gps"
	"github.com/S-3moticon/Smart-Bike-Tracker/store"
)

const (
	// LogNamespace is the store partition holding the history log.
	LogNamespace = "gps-log"

	// Capacity is the number of physical slots. Once full, the
	// oldest entry is overwritten.
	Capacity = 50

	// legacyUptimeThreshold separates old uptime-relative timestamps
	// from absolute epoch milliseconds: anything below it cannot be a
	// plausible wall-clock value and is migrated by adding the
	// acquisition baseline. Best effort only; the original data does
	// not record which convention it used.
	legacyUptimeThreshold = 100000000000
)

// Source identifies where a history entry came from.
type Source uint8

const (
	SourcePhone Source = 0
	SourceModem Source = 1
)

// ErrIndexOutOfRange is returned by Get for a logical index outside
// the currently retained window.
var ErrIndexOutOfRange = errors.New("history: logical index out of range")

// Entry is one logged GPS point.
type Entry struct {
	Lat       float64
	Lon       float64
	Speed     float64
	Timestamp int64
	Source    Source
}

// Log is a circular history log backed by a store namespace. The
// write index and count are cached in memory and persisted on every
// append, so a reboot resumes where the previous run stopped.
type Log struct {
	store      store.Store
	writeIndex uint32
	count      uint32

	// SkipZeroCoordinates drops entries whose latitude and longitude
	// are both exactly zero from rendered pages. Such slots are
	// treated as corrupt rather than as real readings; they still
	// count toward the total.
	SkipZeroCoordinates bool
}

// Open loads the log metadata from the store. A namespace that was
// never written starts empty.
func Open(s store.Store) (*Log, error) {
	ns, err := s.Namespace(LogNamespace)
	if err != nil {
		return nil, errors.Wrap(err, "open history log")
	}
	defer ns.Close()

	return &Log{
		store:               s,
		writeIndex:          ns.GetUint32("logIndex", 0) % Capacity,
		count:               ns.GetUint32("logCount", 0),
		SkipZeroCoordinates: true,
	}, nil
}

// Count reports how many entries are currently retained.
func (l *Log) Count() int {
	return int(l.count)
}

// Append writes the entry into the current slot, advances the write
// index and persists the updated metadata before returning.
func (l *Log) Append(entry Entry) error {
	ns, err := l.store.Namespace(LogNamespace)
	if err != nil {
		return errors.Wrap(err, "open history log")
	}
	defer ns.Close()

	slot := l.writeIndex
	puts := []error{
		ns.PutFloat64(slotKey("lat", slot), entry.Lat),
		ns.PutFloat64(slotKey("lon", slot), entry.Lon),
		ns.PutFloat64(slotKey("spd", slot), entry.Speed),
		ns.PutUint32(slotKey("timeH", slot), uint32(uint64(entry.Timestamp)>>32)),
		ns.PutUint32(slotKey("timeL", slot), uint32(uint64(entry.Timestamp))),
		ns.PutUint8(slotKey("src", slot), uint8(entry.Source)),
	}
	for _, err := range puts {
		if err != nil {
			return errors.Wrapf(err, "write history slot %d", slot)
		}
	}

	writeIndex := (slot + 1) % Capacity
	count := l.count
	if count < Capacity {
		count++
	}
	if err := ns.PutUint32("logIndex", writeIndex); err != nil {
		return errors.Wrap(err, "write history metadata")
	}
	if err := ns.PutUint32("logCount", count); err != nil {
		return errors.Wrap(err, "write history metadata")
	}

	l.writeIndex = writeIndex
	l.count = count
	return nil
}

// Get reads back the entry at the given logical index, where 0 is the
// oldest retained entry and Count()-1 the newest.
func (l *Log) Get(logicalIndex int) (Entry, error) {
	if logicalIndex < 0 || logicalIndex >= int(l.count) {
		return Entry{}, errors.Wrapf(ErrIndexOutOfRange, "index %d of %d", logicalIndex, l.count)
	}

	ns, err := l.store.Namespace(LogNamespace)
	if err != nil {
		return Entry{}, errors.Wrap(err, "open history log")
	}
	defer ns.Close()

	return l.read(ns, l.physical(logicalIndex)), nil
}

// Clear erases the namespace and resets the log to empty.
func (l *Log) Clear() error {
	ns, err := l.store.Namespace(LogNamespace)
	if err != nil {
		return errors.Wrap(err, "open history log")
	}
	defer ns.Close()

	if err := ns.Clear(); err != nil {
		return errors.Wrap(err, "clear history log")
	}
	l.writeIndex = 0
	l.count = 0
	return nil
}

// physical maps a logical index to its storage slot. While the log is
// below capacity the mapping is the identity; once full, logical 0 is
// the slot just past the write index.
func (l *Log) physical(logicalIndex int) uint32 {
	if l.count < Capacity {
		return uint32(logicalIndex)
	}
	return (l.writeIndex + uint32(logicalIndex)) % Capacity
}

func (l *Log) read(ns store.Namespace, slot uint32) Entry {
	return Entry{
		Lat:       ns.GetFloat64(slotKey("lat", slot), 0),
		Lon:       ns.GetFloat64(slotKey("lon", slot), 0),
		Speed:     ns.GetFloat64(slotKey("spd", slot), 0),
		Timestamp: l.readTimestamp(ns, slot),
		Source:    Source(ns.GetUint8(slotKey("src", slot), 0)),
	}
}

// readTimestamp reassembles the split 64-bit timestamp. Slots written
// by old firmware carry a single combined key instead; an old value
// small enough to be an uptime counter rather than epoch milliseconds
// is shifted onto the acquisition baseline.
func (l *Log) readTimestamp(ns store.Namespace, slot uint32) int64 {
	hi := ns.GetUint32(slotKey("timeH", slot), 0)
	lo := ns.GetUint32(slotKey("timeL", slot), 0)
	if hi != 0 {
		return int64(uint64(hi)<<32 | uint64(lo))
	}

	legacy, err := strconv.ParseInt(ns.GetString(slotKey("time", slot), "0"), 10, 64)
	if err != nil || legacy == 0 {
		return int64(lo)
	}
	if legacy < legacyUptimeThreshold {
		legacy += gps.BaselineMillis
	}
	return legacy
}

func slotKey(field string, slot uint32) string {
	return fmt.Sprintf("%s_%d", field, slot)
}
