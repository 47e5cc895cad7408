package slots

import (
	"fmt"
	"strconv"
	"strings"
)

type Slot struct {
	Date  string `json:"date"`
	Hour  int    `json:"hour"`
	Time  string `json:"time"`
	Label string `json:"label"`
}

// Grid returns one slot per whole hour of w, in order.
func Grid(date string, w Window) []Slot {
	grid := make([]Slot, 0, w.Len())
	for h := w.Open; h < w.Close; h++ {
		grid = append(grid, Slot{
			Date:  date,
			Hour:  h,
			Time:  Token(h),
			Label: Label(h),
		})
	}
	return grid
}

// Token is the machine form of an hour, "09:00".
func Token(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// ParseToken reads an "HH:00" token back into an hour.
func ParseToken(token string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(token), ":")
	if !ok || len(hh) != 2 || mm != "00" {
		return 0, fmt.Errorf("start time %q must be a whole hour in HH:00 format", token)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("start time %q must be a whole hour in HH:00 format", token)
	}
	return hour, nil
}

// Label is the human form of the hour starting at hour, "9:00 AM - 10:00 AM".
func Label(hour int) string {
	return clock(hour) + " - " + clock(hour+1)
}

func clock(hour int) string {
	hour %= 24
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:00 %s", h, suffix)
}
