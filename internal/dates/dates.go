// Package dates contains date helpers for comparing portal dates against
// the configured appointment window.
package dates

import (
	"fmt"
	"time"
)

// Layout is the date format the portal uses in its date picker.
const Layout = "2006-01-02"

// Parse parses a portal date string (YYYY-MM-DD).
func Parse(s string) (time.Time, error) {
	d, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse date %q: %w", s, err)
	}
	return d, nil
}

// InRange reports whether date lies within [start, end], bounds included.
// An empty date string never matches.
func InRange(date, start, end string) (bool, error) {
	if date == "" {
		return false, nil
	}
	d, err := Parse(date)
	if err != nil {
		return false, err
	}
	s, err := Parse(start)
	if err != nil {
		return false, err
	}
	e, err := Parse(end)
	if err != nil {
		return false, err
	}
	return !d.Before(s) && !d.After(e), nil
}
