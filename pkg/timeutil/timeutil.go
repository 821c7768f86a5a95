// Package timeutil provides the console clock and date helpers.
// All console timestamps are stored in UTC; Zone is used only for
// presentation and for parsing date-only seed values.
package timeutil

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Zone is the presentation timezone. Replace it at startup with LoadZone.
var Zone = time.UTC

// LoadZone sets Zone from an IANA name. An empty name keeps UTC.
func LoadZone(name string) error {
	if strings.TrimSpace(name) == "" {
		Zone = time.UTC
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", name, err)
	}
	Zone = loc
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock supplies the current time to components that stamp records.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, truncated to milliseconds, in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// FixedClock is a manually advanced clock for tests and replays.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock stopped at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t.UTC()}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// StartOfDay returns midnight of t's day in Zone.
func StartOfDay(t time.Time) time.Time {
	local := t.In(Zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Zone)
}

// StartOfMonth returns the first instant of t's month in Zone.
func StartOfMonth(t time.Time) time.Time {
	local := t.In(Zone)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, Zone)
}

// IsSameDay checks if two times fall on the same day in Zone.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := t1.In(Zone), t2.In(Zone)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DaysBetween returns the number of calendar days from t1 to t2 in Zone.
func DaysBetween(t1, t2 time.Time) int {
	d := StartOfDay(t2).Sub(StartOfDay(t1))
	return int(d.Hours() / 24)
}

// ══════════════════════════════════════════════════════════════════════════════
// PARSING & FORMATTING
// ══════════════════════════════════════════════════════════════════════════════

// Supported layouts for seed timestamps.
const (
	FormatDate     = "2006-01-02"
	FormatDateTime = "2006-01-02 15:04"
)

// ParseTimestamp accepts RFC 3339, "YYYY-MM-DD HH:MM" or "YYYY-MM-DD".
// Zone-less values are interpreted in Zone; the result is UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{FormatDateTime, FormatDate} {
		if t, err := time.ParseInLocation(layout, value, Zone); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// FormatRelative renders t relative to now, e.g. "5 min ago" or "in 2 h".
func FormatRelative(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return formatFutureDuration(-d)
	}
	return formatPastDuration(d)
}

func formatPastDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(d.Hours()))
	case d < 48*time.Hour:
		return "yesterday"
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	default:
		months := int(d.Hours() / 24 / 30)
		if months < 12 {
			return fmt.Sprintf("%d mo ago", months)
		}
		return fmt.Sprintf("%d y ago", months/12)
	}
}

func formatFutureDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("in %d min", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %d h", int(d.Hours()))
	default:
		return fmt.Sprintf("in %d days", int(d.Hours()/24))
	}
}
