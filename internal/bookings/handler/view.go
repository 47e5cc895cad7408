package handler

import (
	"time"

	"courtbook/internal/bookings/slots"
	"courtbook/pkg/model"
)

// BookingView is the wire shape of a booking. Hours are exposed as slot tokens.
type BookingView struct {
	ID              string       `json:"id"`
	PublicReference string       `json:"public_reference"`
	CustomerName    string       `json:"customer_name"`
	CustomerPhone   string       `json:"customer_phone"`
	SportID         string       `json:"sport_id"`
	CourtID         string       `json:"court_id"`
	Date            string       `json:"date"`
	StartTime       string       `json:"start_time"`
	EndTime         string       `json:"end_time"`
	Hours           int          `json:"hours"`
	Amount          int64        `json:"amount"`
	Status          model.Status `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func toView(b *model.Booking) BookingView {
	return BookingView{
		ID:              b.ID,
		PublicReference: b.PublicReference,
		CustomerName:    b.CustomerName,
		CustomerPhone:   b.CustomerPhone,
		SportID:         b.SportID,
		CourtID:         b.CourtID,
		Date:            b.Date,
		StartTime:       slots.Token(b.StartHour),
		EndTime:         slots.Token(b.EndHour()),
		Hours:           b.Hours,
		Amount:          b.Amount,
		Status:          b.Status,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toViews(bookings []*model.Booking) []BookingView {
	views := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, toView(b))
	}
	return views
}

// SportPriceUpdate is the body of a sport price change.
type SportPriceUpdate struct {
	PricePerHour int64 `json:"price_per_hour"`
}
