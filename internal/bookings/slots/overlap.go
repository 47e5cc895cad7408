package slots

import "courtbook/pkg/model"

// Overlaps reports whether the half-open intervals [s1, e1) and [s2, e2)
// share at least one hour. Touching intervals do not overlap.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// FindConflict returns the first booking in booked that holds any hour of
// [start, start+hours), or nil. Bookings whose status no longer occupies
// the slot are skipped.
func FindConflict(booked []*model.Booking, start, hours int) *model.Booking {
	end := start + hours
	for _, b := range booked {
		if !b.Status.OccupiesSlot() {
			continue
		}
		if Overlaps(start, end, b.StartHour, b.EndHour()) {
			return b
		}
	}
	return nil
}

// Occupant returns the booking holding the single hour starting at hour.
func Occupant(booked []*model.Booking, hour int) *model.Booking {
	return FindConflict(booked, hour, 1)
}
