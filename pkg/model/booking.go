package model

import "time"

type Booking struct {
	ID              string    `json:"id" bson:"_id"`
	PublicReference string    `json:"public_reference" bson:"public_reference"`
	CustomerName    string    `json:"customer_name" bson:"customer_name"`
	CustomerPhone   string    `json:"customer_phone" bson:"customer_phone"`
	SportID         string    `json:"sport_id" bson:"sport_id"`
	CourtID         string    `json:"court_id" bson:"court_id"`
	Date            string    `json:"date" bson:"date"`
	StartHour       int       `json:"start_hour" bson:"start_hour"`
	Hours           int       `json:"hours" bson:"hours"`
	Amount          int64     `json:"amount" bson:"amount"`
	Status          Status    `json:"status" bson:"status"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// EndHour is the exclusive end of the booked interval.
func (b *Booking) EndHour() int {
	return b.StartHour + b.Hours
}

// BookingRequest is the customer-facing input for a new booking.
// StartTime is an "HH:00" token.
type BookingRequest struct {
	CustomerName  string `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone string `json:"customer_phone" validate:"required,e164_phone"`
	SportID       string `json:"sport_id" validate:"required,max=64"`
	CourtID       string `json:"court_id" validate:"required,max=64"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime     string `json:"start_time" validate:"required,hour_token"`
	Hours         int    `json:"hours" validate:"required,min=1,max=8"`
}

// BookingLock is an advisory lock row serializing writes to one court-day.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
