// Package timezone renders note timestamps in the shop's configured timezone.
package timezone

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// DefaultLayout is used when no display layout is configured.
const DefaultLayout = "2006-01-02 15:04"

// ParseTimezone parses an IANA timezone identifier (e.g., "Europe/Kyiv").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, errors.Wrapf(err, "invalid timezone %q", tz)
	}
	return loc, nil
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	_, err := ParseTimezone(tz)
	return err == nil
}

// Formatter turns Unix timestamps into display strings.
type Formatter struct {
	loc    *time.Location
	layout string
	now    func() time.Time
}

// NewFormatter creates a Formatter for the timezone identifier tz.
func NewFormatter(tz, layout string) (*Formatter, error) {
	loc, err := ParseTimezone(tz)
	if err != nil {
		return nil, err
	}
	if layout == "" {
		layout = DefaultLayout
	}
	return &Formatter{loc: loc, layout: layout, now: time.Now}, nil
}

// WithClock returns a copy of f using now as the reference for relative dates.
func (f *Formatter) WithClock(now func() time.Time) *Formatter {
	clone := *f
	clone.now = now
	return &clone
}

// Location returns the display timezone.
func (f *Formatter) Location() *time.Location {
	return f.loc
}

// Time converts ts to the display timezone.
func (f *Formatter) Time(ts int64) time.Time {
	return time.Unix(ts, 0).In(f.loc)
}

// Format renders ts with the configured layout.
func (f *Formatter) Format(ts int64) string {
	return f.Time(ts).Format(f.layout)
}

// Relative renders ts relative to now, e.g. "3 hours ago".
func (f *Formatter) Relative(ts int64) string {
	return humanize.RelTime(time.Unix(ts, 0), f.now(), "ago", "from now")
}
