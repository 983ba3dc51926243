package ytime

import "time"

// Timestamp is a point in time expressed as nanoseconds since the Unix
// epoch (spec §4.B). It has no timezone of its own; Format always renders
// in UTC, matching the wire format used in info messages and log lines.
type Timestamp struct {
	unixNanos int64
}

// Now returns the current instant.
func Now() Timestamp {
	return timestampFromTime(time.Now())
}

// timestampFromTime converts a standard library time.Time into a Timestamp.
func timestampFromTime(t time.Time) Timestamp {
	return Timestamp{unixNanos: t.UnixNano()}
}

// FromUnixNanos builds a Timestamp directly from a nanosecond Unix offset.
func FromUnixNanos(ns int64) Timestamp {
	return Timestamp{unixNanos: ns}
}

// UnixNanos returns the number of nanoseconds elapsed since the Unix epoch.
func (t Timestamp) UnixNanos() int64 {
	return t.unixNanos
}

// Time returns the standard library time.Time equivalent, in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, t.unixNanos).UTC()
}

// Add returns t advanced by d. d must be finite.
func (t Timestamp) Add(d Duration) Timestamp {
	return Timestamp{unixNanos: t.unixNanos + d.Nanoseconds()}
}

// Sub returns the Duration elapsed between other and t (t - other).
func (t Timestamp) Sub(other Timestamp) Duration {
	return FromNanoseconds(t.unixNanos - other.unixNanos)
}

// Before reports whether t occurs strictly before other.
func (t Timestamp) Before(other Timestamp) bool {
	return t.unixNanos < other.unixNanos
}

// After reports whether t occurs strictly after other.
func (t Timestamp) After(other Timestamp) bool {
	return t.unixNanos > other.unixNanos
}

// String renders t with the default format, "%F %T.%3".
func (t Timestamp) String() string {
	return t.Format("")
}
