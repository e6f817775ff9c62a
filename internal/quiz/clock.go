package quiz

import "time"

// Clock tracks an optional session deadline. It has no timers; callers poll it.
type Clock struct {
	Deadline *time.Time
}

// NewClock returns a clock expiring durationMinutes after start, or an untimed
// clock when durationMinutes is not positive.
func NewClock(start time.Time, durationMinutes int) Clock {
	if durationMinutes <= 0 {
		return Clock{}
	}
	d := start.Add(time.Duration(durationMinutes) * time.Minute)
	return Clock{Deadline: &d}
}

// Timed reports whether the clock has a deadline.
func (c Clock) Timed() bool { return c.Deadline != nil }

// IsExpired reports whether now is at or past the deadline. Untimed clocks never expire.
func (c Clock) IsExpired(now time.Time) bool {
	return c.Deadline != nil && !now.Before(*c.Deadline)
}

// Remaining returns the time left, floored at zero. ok is false for untimed clocks.
func (c Clock) Remaining(now time.Time) (left time.Duration, ok bool) {
	if c.Deadline == nil {
		return 0, false
	}
	left = c.Deadline.Sub(now)
	if left < 0 {
		left = 0
	}
	return left, true
}

// RefreshInterval is how often a display should redraw the countdown: every
// second near the end, rarely when the deadline is far away. It only governs
// display; expiry detection must poll at least once per second regardless.
func (c Clock) RefreshInterval(now time.Time) time.Duration {
	left, ok := c.Remaining(now)
	switch {
	case !ok:
		return 0
	case left < time.Minute:
		return time.Second
	case left < 5*time.Minute:
		return 5 * time.Second
	case left < 30*time.Minute:
		return 30 * time.Second
	default:
		return time.Minute
	}
}
