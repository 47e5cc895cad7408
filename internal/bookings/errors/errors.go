package errors

import (
	"errors"
	"fmt"

	"courtbook/pkg/model"
)

var (
	ErrNotFound = errors.New("booking not found")

	ErrSlotConflict = errors.New("requested hours overlap an existing booking")

	ErrInvalidTransition = model.ErrInvalidTransition

	ErrOutsideWindow = errors.New("requested hours fall outside the operating window")

	ErrInvalidHours = errors.New("booking length must be between 1 and 8 hours")

	ErrLockTimeout = errors.New("timed out waiting for the court-day lock")
)

// SlotConflictError names the booking that already holds the requested hours.
// It matches ErrSlotConflict under errors.Is.
type SlotConflictError struct {
	CourtID   string
	Date      string
	StartHour int
	EndHour   int
	BookingID string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("%s: court %s on %s is held from %02d:00 to %02d:00",
		ErrSlotConflict, e.CourtID, e.Date, e.StartHour, e.EndHour)
}

func (e *SlotConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}

func NewSlotConflict(existing *model.Booking) *SlotConflictError {
	return &SlotConflictError{
		CourtID:   existing.CourtID,
		Date:      existing.Date,
		StartHour: existing.StartHour,
		EndHour:   existing.EndHour(),
		BookingID: existing.ID,
	}
}
