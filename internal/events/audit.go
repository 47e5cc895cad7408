package events

import (
	"context"

	"courtbook/pkg/kafka"
	"courtbook/pkg/logger"
)

// AuditHandler writes one structured log line per lifecycle event.
// Payloads that cannot be decoded are permanent failures and go to the DLQ.
func AuditHandler(log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event BookingEvent
		if err := msg.DecodeValue(&event); err != nil {
			return kafka.NewPermanentError("decode booking event", err)
		}

		if event.Type == "" {
			event.Type = Type(msg.GetEventType())
		}

		switch event.Type {
		case BookingCreated, BookingCancelled, BookingCompleted:
		default:
			return kafka.NewPermanentError("unknown booking event type "+string(event.Type), nil)
		}

		if event.BookingID == "" {
			return kafka.NewPermanentError("booking event without booking id", nil)
		}

		log.Info("booking lifecycle event",
			"event_type", event.Type,
			"event_id", msg.GetEventID(),
			"correlation_id", msg.GetCorrelationID(),
			"booking_id", event.BookingID,
			"public_reference", event.PublicReference,
			"court_id", event.CourtID,
			"sport_id", event.SportID,
			"date", event.Date,
			"start_time", event.StartTime,
			"hours", event.Hours,
			"amount", event.Amount,
			"status", event.Status,
			"occurred_at", event.OccurredAt,
		)
		return nil
	}
}
