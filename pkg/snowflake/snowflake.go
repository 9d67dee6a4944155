// Package snowflake converts between wall-clock time and the backend's
// 64-bit snowflake ID space, and cuts calendar days into ID windows.
package snowflake

import (
	"strconv"
	"time"

	"chanarchive/pkg/errors"
)

// EpochMS is the backend epoch, 2015-01-01T00:00:00Z in milliseconds
const EpochMS int64 = 1420070400000

const timestampShift = 22

// MinYear is the earliest year a day window can be built for
const MinYear = 2015

// MinDate is the first calendar day with any possible message
var MinDate = time.Date(MinYear, time.January, 1, 0, 0, 0, 0, time.UTC)

// ToSnowflake returns the smallest ID minted at t. Times before the epoch clamp to 0.
func ToSnowflake(t time.Time) uint64 {
	ms := t.UnixMilli() - EpochMS
	if ms < 0 {
		return 0
	}
	return uint64(ms) << timestampShift
}

// ToTimestamp returns the Unix time in seconds encoded in id
func ToTimestamp(id uint64) float64 {
	return float64(int64(id>>timestampShift)+EpochMS) / 1000
}

// Time returns the creation time encoded in id
func Time(id uint64) time.Time {
	return time.UnixMilli(int64(id>>timestampShift) + EpochMS)
}

// ParseID parses a decimal snowflake as sent by the backend
func ParseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrorTypeParsing, err, "invalid snowflake "+strconv.Quote(s))
	}
	return id, nil
}

// Window is an inclusive snowflake range covering one calendar day
type Window struct {
	Low  uint64
	High uint64
}

// Contains reports whether id falls inside the window
func (w Window) Contains(id uint64) bool {
	return id >= w.Low && id <= w.High
}

// Clock cuts days in a fixed time zone
type Clock struct {
	Location *time.Location
}

// NewClock returns a Clock for loc, or the local zone when loc is nil
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{Location: loc}
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// DayBounds returns the window from 00:00:00 to 23:59:59 of the given date
func (c Clock) DayBounds(day int, month time.Month, year int) (Window, error) {
	if year < MinYear {
		return Window{}, errors.New(errors.ErrorTypeInvalidDate, 0, "year %d predates the backend epoch", year)
	}
	loc := c.location()
	start := time.Date(year, month, day, 0, 0, 0, 0, loc)
	end := time.Date(year, month, day, 23, 59, 59, 0, loc)
	return Window{Low: ToSnowflake(start), High: ToSnowflake(end)}, nil
}

// DayWindow is DayBounds for the calendar day containing t in the clock's zone
func (c Clock) DayWindow(t time.Time) (Window, error) {
	y, m, d := t.In(c.location()).Date()
	return c.DayBounds(d, m, y)
}

// Day truncates t to midnight in the clock's zone
func (c Clock) Day(t time.Time) time.Time {
	y, m, d := t.In(c.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.location())
}

// Today returns midnight of the current day
func (c Clock) Today() time.Time {
	return c.Day(time.Now())
}

// BeforeMin reports whether day is earlier than 2015-01-01 in the clock's zone
func (c Clock) BeforeMin(day time.Time) bool {
	y, m, d := day.In(c.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Before(MinDate)
}
