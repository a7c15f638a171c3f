// Package lifecycle derives the single actionable state of an appointment
// from its remote statuses and wall-clock time.
package lifecycle

import (
	"time"
)

// Window classifies how close the current time is to the appointment
// instant. The four regions partition the timeline: everything at or after
// the instant is Expired, the last ten minutes before it are TenMinutes,
// the stretch from two hours out to ten minutes out is TwoHours, and the
// rest is None.
type Window int

const (
	WindowNone Window = iota
	WindowTwoHours
	WindowTenMinutes
	WindowExpired
)

func (w Window) String() string {
	switch w {
	case WindowTwoHours:
		return "2hr"
	case WindowTenMinutes:
		return "10min"
	case WindowExpired:
		return "expired"
	}
	return "none"
}

const instantLayout = "2006-01-02 15:04"

// ClassifyWindow places now relative to the appointment instant parsed from
// date ("YYYY-MM-DD") and tm ("HH:mm") in loc. When either part is missing
// or malformed the classification is skipped and ok is false; callers fall
// back to purely status-based action derivation.
func ClassifyWindow(now time.Time, date, tm string, loc *time.Location) (w Window, ok bool) {
	if date == "" || tm == "" {
		return WindowNone, false
	}
	if loc == nil {
		loc = time.Local
	}
	instant, err := time.ParseInLocation(instantLayout, date+" "+tm, loc)
	if err != nil {
		return WindowNone, false
	}

	switch {
	case !now.Before(instant):
		return WindowExpired, true
	case !now.Before(instant.Add(-10 * time.Minute)):
		return WindowTenMinutes, true
	case !now.Before(instant.Add(-2 * time.Hour)):
		return WindowTwoHours, true
	}
	return WindowNone, true
}
