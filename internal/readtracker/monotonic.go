package readtracker

import "time"

// Monotonic passes a timestamp only if it is strictly later than every
// timestamp passed before. The zero value accepts its first input.
type Monotonic struct {
	last time.Time
	seen bool
}

// Accept reports whether ts advances the filter, recording it if so.
func (m *Monotonic) Accept(ts time.Time) bool {
	if m.seen && !ts.After(m.last) {
		return false
	}
	m.last = ts
	m.seen = true
	return true
}

// Last returns the latest accepted timestamp.
func (m *Monotonic) Last() (time.Time, bool) {
	return m.last, m.seen
}
