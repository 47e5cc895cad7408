package slots

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"

	MinHours = 1
	MaxHours = 8
)

// Window is the daily operating window [Open, Close) in whole hours.
type Window struct {
	Open  int
	Close int
}

func NewWindow(open, close int) (Window, error) {
	if open < 0 || close > 24 || open >= close {
		return Window{}, fmt.Errorf("invalid operating window %d-%d", open, close)
	}
	return Window{Open: open, Close: close}, nil
}

// Len is the number of bookable hours per day.
func (w Window) Len() int {
	return w.Close - w.Open
}

// Contains reports whether [start, start+hours) lies inside the window.
func (w Window) Contains(start, hours int) bool {
	return hours > 0 && start >= w.Open && start+hours <= w.Close
}

// ValidHours reports whether hours is an allowed booking length.
func ValidHours(hours int) bool {
	return hours >= MinHours && hours <= MaxHours
}

func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be in YYYY-MM-DD format", raw)
	}
	return d, nil
}

// DateOf returns the civil date of t in loc.
func DateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}
