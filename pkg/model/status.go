package model

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var validTransitions = map[Status][]Status{
	StatusBooked:    {StatusCancelled, StatusCompleted},
	StatusCancelled: {},
	StatusCompleted: {},
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Transition returns the target status, or an error wrapping
// ErrInvalidTransition when the move is not allowed from s.
func (s Status) Transition(target Status) (Status, error) {
	if !s.CanTransitionTo(target) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, target)
	}
	return target, nil
}

// OccupiesSlot reports whether a booking in this status holds its court hours.
// Completed bookings release their slot, same as cancelled ones.
func (s Status) OccupiesSlot() bool {
	return s == StatusBooked
}

// CountsTowardRevenue reports whether a booking in this status is billable.
func (s Status) CountsTowardRevenue() bool {
	return s == StatusBooked || s == StatusCompleted
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown booking status %q", raw)
	}
	return s, nil
}
