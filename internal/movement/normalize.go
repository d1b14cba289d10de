package movement

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the schedule's date/time cell prefixed with the year.
// The source writes no space between the month and the hour, e.g. "Mon 15 Jan09:30".
// Day, hour and minute may each be one or two digits.
const TimestampLayout = "2006 Mon 2 Jan15:4"

// FormatError reports a date/time cell that does not match TimestampLayout.
type FormatError struct {
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unexpected date/time value %q", e.Value)
	}
	return fmt.Sprintf("unexpected date/time value %q: %v", e.Value, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Normalizer rewrites a record's first column into an absolute timestamp.
type Normalizer struct {
	clock    Clock
	location *time.Location
}

// NewNormalizer anchors parsed timestamps to loc, taking the year from clock.
func NewNormalizer(clock Clock, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{clock: clock, location: loc}
}

// Apply replaces the value of the record's first key with the parsed
// time.Time. The year is always the current year in the harbour location, so
// a late-December movement scraped in January lands in the wrong year.
func (n *Normalizer) Apply(rec Record) (Record, error) {
	key, value, ok := rec.First()
	if !ok {
		return rec, &FormatError{Value: "", Err: fmt.Errorf("record has no date/time column")}
	}
	raw, ok := value.(string)
	if !ok {
		return rec, &FormatError{Value: fmt.Sprint(value), Err: fmt.Errorf("date/time column %q is not text", key)}
	}
	year := n.clock.Now().In(n.location).Year()
	ts, err := ParseTimestamp(raw, year, n.location)
	if err != nil {
		return rec, err
	}
	rec.Set(key, ts)
	return rec, nil
}

// Normalize lazily applies Apply to every record in seq. The returned
// sequence yields the first error and then stops.
func (n *Normalizer) Normalize(seq iter.Seq[Record]) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for rec := range seq {
			out, err := n.Apply(rec)
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

// ParseTimestamp parses raw ("Mon 15 Jan09:30") for the given year. Runs of
// whitespace, including non-breaking spaces, count as one space. The wall
// clock fields are kept as they are and attached to loc.
func ParseTimestamp(raw string, year int, loc *time.Location) (time.Time, error) {
	value := strconv.Itoa(year) + " " + strings.Join(strings.Fields(raw), " ")
	wall, err := time.Parse(TimestampLayout, value)
	if err != nil {
		return time.Time{}, &FormatError{Value: raw, Err: err}
	}
	return inZone(wall, loc), nil
}

// zoneWindow bounds the search for a neighbouring offset around a transition.
const zoneWindow = 6 * time.Hour

// inZone attaches loc to the wall clock of wall, which is read as UTC. A wall
// time that occurs twice resolves to the earlier instant. A wall time that
// was skipped keeps its fields at the offset in force before the change.
func inZone(wall time.Time, loc *time.Location) time.Time {
	guess := time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)

	var (
		best  time.Time
		found bool
	)
	for _, near := range []time.Time{guess.Add(-zoneWindow), guess, guess.Add(zoneWindow)} {
		_, off := near.Zone()
		at := wall.Add(-time.Duration(off) * time.Second).In(loc)
		if _, got := at.Zone(); got != off {
			continue
		}
		if !found || at.Before(best) {
			best, found = at, true
		}
	}
	if found {
		return best
	}

	name, off := guess.Add(-zoneWindow).Zone()
	return time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.FixedZone(name, off))
}
