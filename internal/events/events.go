package events

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/bookings/slots"
	"courtbook/pkg/kafka"
	"courtbook/pkg/logger"
	"courtbook/pkg/middleware"
	"courtbook/pkg/model"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingCancelled Type = "booking.cancelled"
	BookingCompleted Type = "booking.completed"

	SchemaVersion = "1"
)

// BookingEvent is the payload written for every lifecycle change.
// Customer contact details stay out of the stream.
type BookingEvent struct {
	Type            Type         `json:"type"`
	BookingID       string       `json:"booking_id"`
	PublicReference string       `json:"public_reference"`
	CourtID         string       `json:"court_id"`
	SportID         string       `json:"sport_id"`
	Date            string       `json:"date"`
	StartTime       string       `json:"start_time"`
	Hours           int          `json:"hours"`
	Amount          int64        `json:"amount"`
	Status          model.Status `json:"status"`
	OccurredAt      time.Time    `json:"occurred_at"`
}

// TypeFor maps the status a booking just entered to its event type.
func TypeFor(status model.Status) (Type, bool) {
	switch status {
	case model.StatusBooked:
		return BookingCreated, true
	case model.StatusCancelled:
		return BookingCancelled, true
	case model.StatusCompleted:
		return BookingCompleted, true
	default:
		return "", false
	}
}

func NewBookingEvent(eventType Type, b *model.Booking) BookingEvent {
	return BookingEvent{
		Type:            eventType,
		BookingID:       b.ID,
		PublicReference: b.PublicReference,
		CourtID:         b.CourtID,
		SportID:         b.SportID,
		Date:            b.Date,
		StartTime:       slots.Token(b.StartHour),
		Hours:           b.Hours,
		Amount:          b.Amount,
		Status:          b.Status,
		OccurredAt:      b.UpdatedAt,
	}
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// BookingPublisher emits lifecycle events after the ledger has committed.
// A nil *BookingPublisher, or one without a Publisher, is a no-op.
type BookingPublisher struct {
	publisher Publisher
	source    string
	log       *logger.Logger
}

func NewBookingPublisher(publisher Publisher, source string, log *logger.Logger) *BookingPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &BookingPublisher{publisher: publisher, source: source, log: log}
}

// BookingChanged publishes the event for b. Failures are logged and returned
// but never affect the committed booking.
func (p *BookingPublisher) BookingChanged(ctx context.Context, b *model.Booking) error {
	if p == nil || p.publisher == nil || b == nil {
		return nil
	}

	eventType, ok := TypeFor(b.Status)
	if !ok {
		return fmt.Errorf("no event type for status %q", b.Status)
	}

	msg, err := kafka.NewMessage().
		WithKey(b.CourtID).
		WithValue(NewBookingEvent(eventType, b)).
		WithEventType(string(eventType)).
		WithCorrelationID(middleware.RequestIDFrom(ctx)).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		Build()
	if err != nil {
		p.log.Error("failed to build booking event", "booking_id", b.ID, "event_type", eventType, "error", err)
		return err
	}

	if err := p.publisher.Publish(ctx, msg); err != nil {
		p.log.Error("failed to publish booking event",
			"booking_id", b.ID,
			"event_type", eventType,
			"event_id", msg.GetEventID(),
			"error", err,
		)
		return err
	}

	return nil
}
