package types

import "time"

// Timestamp is a point in time with millisecond precision, counted from the unix epoch.
type Timestamp int64

// TimestampOf converts t to a Timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time converts the timestamp back to time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// IsZero is true if the timestamp was never set.
func (t Timestamp) IsZero() bool {
	return t == 0
}

// After reports whether t is strictly later than other.
func (t Timestamp) After(other Timestamp) bool {
	return t > other
}

// String returns RFC3339 representation with milliseconds.
func (t Timestamp) String() string {
	if t.IsZero() {
		return "never"
	}
	return t.Time().Format("2006-01-02T15:04:05.000Z07:00")
}
