package daterange

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Keywords accepted in place of a date.
const (
	BeginningOfMonth     = "bom"
	BeginningOfLastMonth = "bolm"
	EndOfLastMonth       = "eolm"
)

// ErrInvalidRange is returned when the end precedes the begin.
var ErrInvalidRange = errors.New("daterange: end before begin")

// Range is an inclusive reporting interval.
type Range struct {
	Begin time.Time
	End   time.Time
}

// Resolve turns CLI date expressions into a range: begin at 00:00:00 and end at the last
// nanosecond of its day, both in loc.
func Resolve(begin, end string, now time.Time, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	var b time.Time
	switch strings.ToLower(strings.TrimSpace(begin)) {
	case BeginningOfMonth:
		b = bom(now)
	case BeginningOfLastMonth:
		b = bolm(now)
	default:
		parsed, err := dateparse.ParseIn(begin, loc)
		if err != nil {
			return Range{}, fmt.Errorf("daterange: begin %q: %w", begin, err)
		}
		b = parsed
	}

	var e time.Time
	switch strings.ToLower(strings.TrimSpace(end)) {
	case EndOfLastMonth:
		e = eolm(now)
	default:
		parsed, err := dateparse.ParseIn(end, loc)
		if err != nil {
			return Range{}, fmt.Errorf("daterange: end %q: %w", end, err)
		}
		e = parsed
	}

	r := Range{Begin: startOfDay(b), End: endOfDay(e)}
	if r.End.Before(r.Begin) {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, r.Begin.Format(time.DateOnly), r.End.Format(time.DateOnly))
	}
	return r, nil
}

// String renders the range as dd/mm/yyyy to dd/mm/yyyy.
func (r Range) String() string {
	return fmt.Sprintf("%s to %s", r.Begin.Format("02/01/2006"), r.End.Format("02/01/2006"))
}

func bom(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

func eolm(now time.Time) time.Time {
	return bom(now).AddDate(0, 0, -1)
}

func bolm(now time.Time) time.Time {
	d := eolm(now)
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
