package history

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// fixed7 and fixed1 serialize with a fixed number of decimals so the
// rendered page matches the precision the points were logged at.
type fixed7 float64

func (f fixed7) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(f), 'f', 7, 64), nil
}

type fixed1 float64

func (f fixed1) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(f), 'f', 1, 64), nil
}

type pageEntry struct {
	Lat       fixed7 `json:"lat"`
	Lon       fixed7 `json:"lon"`
	Speed     fixed1 `json:"speed"`
	Timestamp uint64 `json:"time"`
	Source    uint8  `json:"src"`
}

// Page is one rendered slice of the history log.
type Page struct {
	History       []pageEntry `json:"history"`
	Page          int         `json:"page"`
	TotalPages    int         `json:"totalPages"`
	TotalPoints   int         `json:"totalPoints"`
	PointsPerPage int         `json:"pointsPerPage"`
}

// RenderPage serializes one page of the log, oldest first, as JSON.
// An out-of-range page index or an empty log yields a page with an
// empty list but full metadata. Entries whose coordinates are both
// exactly zero are skipped when SkipZeroCoordinates is set, though
// they still count toward totalPoints.
func (l *Log) RenderPage(pageIndex, pageSize int) ([]byte, error) {
	if pageSize <= 0 {
		return nil, errors.Errorf("history: page size %d", pageSize)
	}

	count := int(l.count)
	page := Page{
		History:       []pageEntry{},
		Page:          pageIndex,
		TotalPages:    (count + pageSize - 1) / pageSize,
		TotalPoints:   count,
		PointsPerPage: pageSize,
	}

	start := pageIndex * pageSize
	if pageIndex < 0 || start >= count {
		return json.Marshal(page)
	}
	end := start + pageSize
	if end > count {
		end = count
	}

	ns, err := l.store.Namespace(LogNamespace)
	if err != nil {
		return nil, errors.Wrap(err, "open history log")
	}
	defer ns.Close()

	for i := start; i < end; i++ {
		entry := l.read(ns, l.physical(i))
		if l.SkipZeroCoordinates && entry.Lat == 0 && entry.Lon == 0 {
			continue
		}
		page.History = append(page.History, pageEntry{
			Lat:       fixed7(entry.Lat),
			Lon:       fixed7(entry.Lon),
			Speed:     fixed1(entry.Speed),
			Timestamp: uint64(entry.Timestamp),
			Source:    uint8(entry.Source),
		})
	}
	return json.Marshal(page)
}
