// Package schedule normalizes human-writable trigger specifications into an
// unambiguous day→times table.
//
// Three input shapes are accepted:
//
//   - A comma-separated time list: "09:30,13:30" (fires every day).
//   - A rule string: "1-5@09:30,13:30;6-7@10:00" where day tokens are the
//     digits 1..7 (1=Monday) or wraparound ranges like "5-2".
//   - A mapping from "every" or a day token to a list of times.
//
// Parsing is pure and deterministic; malformed input is reported with an
// error naming the offending token.
package schedule

import (
	"fmt"
	"time"
)

// Time is a 24-hour wall-clock value with minute resolution.
// The textual form is strictly "HH:MM" (two digits each side).
type Time struct {
	Hour   int
	Minute int
}

// ParseTime validates and parses a strict HH:MM string.
// "9:30", "24:00" and "12:60" are all rejected.
func ParseTime(s string) (Time, error) {
	if len(s) != 5 || s[2] != ':' {
		return Time{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return Time{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 {
		return Time{}, fmt.Errorf("invalid hour in %q", s)
	}
	if m > 59 {
		return Time{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Time{Hour: h, Minute: m}, nil
}

func (t Time) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Before orders times by (hour, minute).
func (t Time) Before(o Time) bool {
	if t.Hour != o.Hour {
		return t.Hour < o.Hour
	}
	return t.Minute < o.Minute
}

// Day identifies a weekday trigger bucket, or Every for "all days".
//
// Numeric day tokens follow the 1=Monday .. 7=Sunday convention; no other
// spelling (names, abbreviations, 0-based indexes) is accepted on input.
type Day int

const (
	Every Day = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// weekOrder is the canonical Monday-first week used for range expansion.
var weekOrder = [7]Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d Day) String() string {
	switch d {
	case Every:
		return "every"
	case Monday:
		return "monday"
	case Tuesday:
		return "tuesday"
	case Wednesday:
		return "wednesday"
	case Thursday:
		return "thursday"
	case Friday:
		return "friday"
	case Saturday:
		return "saturday"
	case Sunday:
		return "sunday"
	}
	return fmt.Sprintf("day(%d)", int(d))
}

// Weekday maps a concrete day to the stdlib weekday (Sunday=0).
// Calling it on Every is a programming error; it returns Sunday.
func (d Day) Weekday() time.Weekday {
	if d == Sunday {
		return time.Sunday
	}
	return time.Weekday(int(d))
}

// Table maps each day bucket to its ordered, deduplicated trigger times.
// A Table is built once by the parser and treated as immutable afterwards.
type Table map[Day][]Time

// add appends tm to the day bucket unless an equal time is already present
// (first occurrence wins, insertion order preserved).
func (t Table) add(d Day, tm Time) {
	for _, have := range t[d] {
		if have == tm {
			return
		}
	}
	t[d] = append(t[d], tm)
}

// Len reports the total number of (day, time) triggers in the table.
func (t Table) Len() int {
	n := 0
	for _, times := range t {
		n += len(times)
	}
	return n
}
