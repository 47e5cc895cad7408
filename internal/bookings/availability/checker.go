package availability

import (
	"context"
	"fmt"

	"courtbook/internal/bookings/ledger"
	"courtbook/internal/bookings/slots"
	"courtbook/pkg/model"
)

type CourtLister interface {
	Courts() []model.Court
}

// SlotState is one hour of a court's day.
type SlotState struct {
	slots.Slot
	Available bool   `json:"available"`
	BookingID string `json:"booking_id,omitempty"`
}

type CourtGrid struct {
	Court model.Court `json:"court"`
	Slots []SlotState `json:"slots"`
}

// Checker answers free/busy questions from the ledger. It never writes;
// the authoritative check at booking time happens inside the ledger.
type Checker struct {
	ledger  ledger.Reader
	catalog CourtLister
	window  slots.Window
}

func NewChecker(reader ledger.Reader, catalog CourtLister, window slots.Window) *Checker {
	return &Checker{
		ledger:  reader,
		catalog: catalog,
		window:  window,
	}
}

// IsSlotFree reports whether [startHour, startHour+hours) on the court-day
// is inside the operating window and clear of every booked reservation.
func (c *Checker) IsSlotFree(ctx context.Context, courtID, date string, startHour, hours int) (bool, error) {
	if !c.window.Contains(startHour, hours) {
		return false, nil
	}

	booked, err := c.ledger.ListBooked(ctx, courtID, date)
	if err != nil {
		return false, err
	}
	return slots.FindConflict(booked, startHour, hours) == nil, nil
}

// DayGrid lists every catalog court with the state of each hour on date.
func (c *Checker) DayGrid(ctx context.Context, date string) ([]CourtGrid, error) {
	grid := slots.Grid(date, c.window)
	courts := c.catalog.Courts()

	out := make([]CourtGrid, 0, len(courts))
	for _, court := range courts {
		booked, err := c.ledger.ListBooked(ctx, court.ID, date)
		if err != nil {
			return nil, fmt.Errorf("failed to load bookings for court %s: %w", court.ID, err)
		}

		states := make([]SlotState, 0, len(grid))
		for _, slot := range grid {
			state := SlotState{Slot: slot, Available: true}
			if occupant := slots.Occupant(booked, slot.Hour); occupant != nil {
				state.Available = false
				state.BookingID = occupant.ID
			}
			states = append(states, state)
		}

		out = append(out, CourtGrid{Court: court, Slots: states})
	}
	return out, nil
}
