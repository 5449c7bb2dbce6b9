package models

import (
	"fmt"
	"time"
)

// DateLayout is the input layout for custom range dates.
const DateLayout = "2006-01-02"

// RangeChoice is one of the date-range menu entries.
type RangeChoice string

const (
	RangeLastMonth    RangeChoice = "1"
	RangeLastSixMonth RangeChoice = "2"
	RangeLastYear     RangeChoice = "3"
	RangeCustom       RangeChoice = "4"
	RangeAll          RangeChoice = "5"
)

// RangeChoices lists the menu entries in display order.
var RangeChoices = []RangeChoice{RangeLastMonth, RangeLastSixMonth, RangeLastYear, RangeCustom, RangeAll}

// presetDays maps preset choices to the number of days they look back.
var presetDays = map[RangeChoice]int{
	RangeLastMonth:    30,
	RangeLastSixMonth: 182,
	RangeLastYear:     365,
}

// Window is an explicit date bound. The zero value means "no window".
type Window struct {
	Start time.Time
	End   time.Time
}

// IsSet reports whether both bounds are present.
func (w Window) IsSet() bool {
	return !w.Start.IsZero() && !w.End.IsZero()
}

// Excludes reports whether t falls strictly before the window's lower bound.
// An unset window excludes nothing.
func (w Window) Excludes(t time.Time) bool {
	return w.IsSet() && t.Before(w.Start)
}

func (w Window) String() string {
	if !w.IsSet() {
		return "all messages"
	}
	return fmt.Sprintf("%s to %s", w.Start.Format(DateLayout), w.End.Format(DateLayout))
}

// PresetWindow returns the window for a preset choice ending at now.
// RangeAll and unknown choices yield the zero window.
func PresetWindow(choice RangeChoice, now time.Time) Window {
	days, ok := presetDays[choice]
	if !ok {
		return Window{}
	}
	return Window{Start: now.AddDate(0, 0, -days), End: now}
}

// CustomWindow builds a window from two user-supplied days. If start is after
// end the two are swapped and swapped is true. End is moved to 23:59:59 so the
// whole last day is included.
func CustomWindow(start, end time.Time) (w Window, swapped bool) {
	if start.After(end) {
		start, end = end, start
		swapped = true
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, end.Location())
	return Window{Start: start, End: end}, swapped
}

// ParseCustomWindow parses two YYYY-MM-DD dates in loc and builds a CustomWindow.
func ParseCustomWindow(start, end string, loc *time.Location) (Window, bool, error) {
	s, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return Window{}, false, fmt.Errorf("%w: %q", ErrInvalidDate, start)
	}
	e, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return Window{}, false, fmt.Errorf("%w: %q", ErrInvalidDate, end)
	}
	w, swapped := CustomWindow(s, e)
	return w, swapped, nil
}
