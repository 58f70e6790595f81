package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultSessionYear anchors timestamps that carry no year.
const DefaultSessionYear = 2025

// ErrInvalidTimestamp is returned for a timestamp that matches a grammar
// but does not name a real instant.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

var months = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// Resolver turns the two timestamp grammars into UTC instants and remembers
// the last valid one for lines that have none.
type Resolver struct {
	year int
	last time.Time
	set  bool
}

// NewResolver creates a resolver for the given session year.
func NewResolver(year int) *Resolver {
	if year <= 0 {
		year = DefaultSessionYear
	}
	return &Resolver{year: year}
}

// Epoch is the instant used when no valid timestamp has been seen yet.
func (r *Resolver) Epoch() time.Time {
	return time.Date(r.year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// Last returns the most recent valid timestamp, or the epoch.
func (r *Resolver) Last() time.Time {
	if !r.set {
		return r.Epoch()
	}
	return r.last
}

// Month parses "Mon D HH:MM:SS.mmm". A missing ".mmm" is read as ".000".
func (r *Resolver) Month(ts string) (time.Time, error) {
	fields := strings.Fields(ts)
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
	}
	mon, ok := months[fields[0]]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month in %q", ErrInvalidTimestamp, ts)
	}
	day := parseDigits(fields[1])
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: day out of range in %q", ErrInvalidTimestamp, ts)
	}
	h, m, s, ms, err := parseClock(fields[2], true)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", err, ts)
	}
	t := time.Date(r.year, mon, day, h, m, s, ms*int(time.Millisecond), time.UTC)
	// time.Date normalizes Feb 30 into March; reject instead.
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: no day %d in %s", ErrInvalidTimestamp, day, mon)
	}
	return r.remember(t), nil
}

// Prefix parses the MCU form "NN-[NN ]HH:MM:SS.mmm". Only the time of day is
// kept; the date is January 1 of the session year.
func (r *Resolver) Prefix(ts string) (time.Time, error) {
	clock := ts
	if i := strings.LastIndexAny(ts, "- \t"); i >= 0 {
		clock = ts[i+1:]
	}
	h, m, s, ms, err := parseClock(clock, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", err, ts)
	}
	t := time.Date(r.year, time.January, 1, h, m, s, ms*int(time.Millisecond), time.UTC)
	return r.remember(t), nil
}

func (r *Resolver) remember(t time.Time) time.Time {
	r.last = t
	r.set = true
	return t
}

// parseClock reads "HH:MM:SS.mmm". When optionalMillis is set the fraction
// may be omitted.
func parseClock(s string, optionalMillis bool) (h, m, sec, ms int, err error) {
	if len(s) != 8 && len(s) != 12 {
		return 0, 0, 0, 0, ErrInvalidTimestamp
	}
	if len(s) == 8 && !optionalMillis {
		return 0, 0, 0, 0, ErrInvalidTimestamp
	}
	if s[2] != ':' || s[5] != ':' {
		return 0, 0, 0, 0, ErrInvalidTimestamp
	}
	h = parseInt2(s[0:2])
	m = parseInt2(s[3:5])
	sec = parseInt2(s[6:8])
	if len(s) == 12 {
		if s[8] != '.' {
			return 0, 0, 0, 0, ErrInvalidTimestamp
		}
		ms = parseDigits(s[9:12])
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 || ms < 0 || ms > 999 {
		return 0, 0, 0, 0, ErrInvalidTimestamp
	}
	return h, m, sec, ms, nil
}

// parseInt2 parses a 2-digit decimal string. Returns -1 on error.
func parseInt2(s string) int {
	if len(s) != 2 {
		return -1
	}
	d1, d2 := s[0]-'0', s[1]-'0'
	if d1 > 9 || d2 > 9 {
		return -1
	}
	return int(d1)*10 + int(d2)
}

// parseDigits parses a short unsigned decimal string. Returns -1 on error.
func parseDigits(s string) int {
	if len(s) == 0 || len(s) > 9 {
		return -1
	}
	n := 0
	for i := 0; i < len(s); i++ {
		d := s[i] - '0'
		if d > 9 {
			return -1
		}
		n = n*10 + int(d)
	}
	return n
}
